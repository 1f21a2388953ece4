package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"taskbridge/internal/agents"
	"taskbridge/internal/config"
	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
	"taskbridge/internal/taskapi"
	"taskbridge/internal/webhook"
	"taskbridge/pkg/bootstrap"
	apperrors "taskbridge/pkg/errors"
	"taskbridge/pkg/health"
	"taskbridge/pkg/logging"
	"taskbridge/pkg/metrics"
	"taskbridge/pkg/middleware"
	"taskbridge/pkg/ratelimit"
	"taskbridge/pkg/retry"
	"taskbridge/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	stores         *bootstrap.StoreConnector
	redis          *redis.Client
	apiClient      *taskapi.Client
	registration   taskapi.WebhookRegistration
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("webhook-service")
	}
	return &App{
		Base:   bootstrap.NewBase(cfg, log),
		stores: bootstrap.NewStoreConnector(cfg, log),
	}
}

// Initialize runs the startup sequence in its mandated order: the task
// API must be reachable before signup, and signup must yield the
// signing secret before the receiver can verify anything, so the
// publisher connects last and only then does the server come up.
func (a *App) Initialize(ctx context.Context) error {
	a.apiClient = taskapi.NewClient(a.Config.TaskAPI, a.Logger)

	if err := a.waitForAPI(ctx); err != nil {
		return err
	}

	if err := a.signup(ctx); err != nil {
		return fmt.Errorf("webhook signup failed: %w", err)
	}

	if err := a.InitPublisher(ctx); err != nil {
		return fmt.Errorf("failed to initialize broker publisher: %w", err)
	}

	if err := a.initRedis(ctx); err != nil {
		initCtx := logging.WithServiceName(ctx, "webhook-service")
		a.Logger.WarnwCtx(initCtx, "Redis initialization failed, agent management endpoints will be disabled",
			"error", err,
		)
	}

	tp, err := tracing.Init(a.Config.Tracing, "webhook-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterReceiverMetrics()
	metrics.RegisterManagementMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

// waitForAPI polls the task API health endpoint at a fixed interval
// until it answers or the retry limit is reached. Running out of
// attempts is fatal: without the API there is nothing to register with.
func (a *App) waitForAPI(ctx context.Context) error {
	startup := a.Config.Startup
	attempt := 0

	err := retry.RetryConstant(ctx, startup.MaxRetries, startup.RetryInterval, func() error {
		attempt++
		if err := a.apiClient.Health(ctx); err != nil {
			a.Logger.WarnwCtx(ctx, "Task API not ready, waiting",
				"attempt", attempt,
				"max_retries", startup.MaxRetries,
				"error", err,
			)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("task API did not become healthy after %d attempts: %w", attempt, err)
	}

	a.Logger.InfowCtx(ctx, "Task API is healthy", "attempts", attempt)
	return nil
}

// signup performs the login/cleanup/register handshake. Authorization
// failures are retried at the startup interval (the admin account may
// still be seeding); anything else aborts startup.
func (a *App) signup(ctx context.Context) error {
	registry := webhook.NewRegistry(a.apiClient, a.Config.TaskAPI, a.Config.Webhook, a.Logger)
	startup := a.Config.Startup

	return retry.RetryConstant(ctx, startup.MaxRetries, startup.RetryInterval, func() error {
		reg, err := registry.Signup(ctx)
		if err != nil {
			if apperrors.IsUnauthorized(err) {
				a.Logger.WarnwCtx(ctx, "Webhook signup unauthorized, retrying", "error", err)
				return err
			}
			return retry.NewFatalError(err)
		}
		a.registration = reg
		return nil
	})
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
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("webhook-service"))
	}
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(a.Logger),
		middleware.RecoveryMiddleware(a.Logger),
	)

	receiver := webhook.NewHandler(a.registration.Secret, a.Publisher, a.Logger)
	receiver.RegisterRoutes(router)

	if a.redis != nil {
		store := agents.NewRedisStore(a.redis, a.Logger)
		provisioner := agents.NewAdminProvisioner(a.Config.TaskAPI, a.Logger)
		service := agents.NewService(store, provisioner, a.Logger)

		managed := router.Group("", ratelimit.Middleware(ratelimit.DefaultConfig()))
		agents.NewHandler(service, a.Logger).RegisterRoutes(managed)
	}

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewFuncChecker("task_api", a.apiClient.Health))

	router.GET("/ready", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
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

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "webhook-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down webhook service")

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
