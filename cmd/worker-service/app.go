package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"taskbridge/internal/agents"
	"taskbridge/internal/config"
	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	"taskbridge/internal/worker"
	"taskbridge/pkg/bootstrap"
	"taskbridge/pkg/health"
	"taskbridge/pkg/logging"
	"taskbridge/pkg/metrics"
	"taskbridge/pkg/models"
	"taskbridge/pkg/tracing"
)

// taskPayloadEnv carries a single base64-encoded event envelope for
// one-shot invocations (scheduled jobs, function runtimes). When set,
// the worker processes that one event and exits instead of consuming
// from the broker.
const taskPayloadEnv = "TASK_PAYLOAD"

type App struct {
	*bootstrap.Base
	stores         *bootstrap.StoreConnector
	redis          *redis.Client
	handler        *worker.Handler
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("worker-service")
	}
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		stores: bootstrap.NewStoreConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tasks, err := taskapi.NewServiceFromConfig(a.Config.TaskAPI, a.Config.CircuitBreaker, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize task API service: %w", err)
	}

	if err := a.initRedis(ctx); err != nil {
		initCtx := logging.WithServiceName(ctx, "worker-service")
		a.Logger.WarnwCtx(initCtx, "Redis initialization failed, tasks will be processed without agent prompts",
			"error", err,
		)
	}

	var prompts worker.PromptSource
	if a.redis != nil {
		prompts = agents.NewRedisStore(a.redis, a.Logger)
	}

	a.handler = worker.NewHandler(tasks, prompts, worker.NewPromptProcessor(), a.Logger)

	if err := a.InitConsumer("worker-service"); err != nil {
		return fmt.Errorf("failed to initialize broker consumer: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "worker-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterWorkerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.stores.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	if payload := os.Getenv(taskPayloadEnv); payload != "" {
		return a.runOnce(ctx, payload)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.Consumer.Consume(gCtx, a.handler.HandleEvent)
	})

	return g.Wait()
}

// runOnce decodes one envelope from the environment, handles it, and
// returns. No broker connection is made.
func (a *App) runOnce(ctx context.Context, payload string) error {
	a.Logger.InfowCtx(ctx, "Processing single task payload from environment")

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode %s: %w", taskPayloadEnv, err)
	}

	env, err := models.ParseEnvelope(raw)
	if err != nil {
		return fmt.Errorf("parse %s envelope: %w", taskPayloadEnv, err)
	}

	eventCtx := logging.WithEvent(ctx, env.Event)
	if taskID := env.TaskID(); taskID != "" {
		eventCtx = logging.WithTaskID(eventCtx, taskID)
	}

	return a.handler.HandleEvent(eventCtx, env)
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "worker-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down worker service")

	additionalShutdown := func(ctx context.Context) []error {
		errs := a.stores.ShutdownStores(a.redis)
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
			}
		}
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
