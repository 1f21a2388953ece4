package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
)

type StoreConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewStoreConnector(cfg *config.Config, log logger.Logger) *StoreConnector {
	return &StoreConnector{
		Config: cfg,
		Logger: log,
	}
}

func (sc *StoreConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", sc.Config.Redis.Host, sc.Config.Redis.Port),
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	sc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (sc *StoreConnector) ShutdownStores(redis *redis.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	return errs
}
