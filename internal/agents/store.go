package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
)

// ConfigStore is the persistence surface the service and the worker
// depend on; the Redis implementation below is the only production one.
type ConfigStore interface {
	Set(ctx context.Context, agentID string, cfg AgentConfig) error
	Get(ctx context.Context, agentID string) (*AgentConfig, error)
	Delete(ctx context.Context, agentID string) (bool, error)
	Exists(ctx context.Context, agentID string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

type RedisStore struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: log,
	}
}

func key(agentID string) string {
	return constants.AgentKeyPrefix + agentID
}

func (s *RedisStore) Set(ctx context.Context, agentID string, cfg AgentConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}

	if err := s.client.Set(ctx, key(agentID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	s.logger.DebugwCtx(ctx, "Stored agent config", "agent_id", agentID)
	return nil
}

// Get returns nil without error when no config exists for agentID.
func (s *RedisStore) Get(ctx context.Context, agentID string) (*AgentConfig, error) {
	raw, err := s.client.Get(ctx, key(agentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var cfg AgentConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal agent config %s: %w", agentID, err)
	}
	return &cfg, nil
}

func (s *RedisStore) Delete(ctx context.Context, agentID string) (bool, error) {
	removed, err := s.client.Del(ctx, key(agentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis DEL failed: %w", err)
	}
	return removed > 0, nil
}

func (s *RedisStore) Exists(ctx context.Context, agentID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(agentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis EXISTS failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, constants.AgentKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), constants.AgentKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis SCAN failed: %w", err)
	}
	return ids, nil
}

// SystemPrompt returns only the prompt for agentID, "" when the agent
// has no stored config.
func (s *RedisStore) SystemPrompt(ctx context.Context, agentID string) (string, error) {
	cfg, err := s.Get(ctx, agentID)
	if err != nil {
		return "", err
	}
	if cfg == nil {
		return "", nil
	}
	return cfg.SystemPrompt, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
