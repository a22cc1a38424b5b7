package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/intelliinspect-go/internal/api"
	"github.com/irfndi/intelliinspect-go/internal/api/handlers"
	"github.com/irfndi/intelliinspect-go/internal/cache"
	"github.com/irfndi/intelliinspect-go/internal/config"
	"github.com/irfndi/intelliinspect-go/internal/database"
	"github.com/irfndi/intelliinspect-go/internal/logging"
	"github.com/irfndi/intelliinspect-go/internal/metrics"
	"github.com/irfndi/intelliinspect-go/internal/predictor"
	"github.com/irfndi/intelliinspect-go/internal/services"
	"github.com/irfndi/intelliinspect-go/internal/telemetry"
	"github.com/irfndi/intelliinspect-go/pkg/interfaces"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	std      *logging.StandardLogger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db    *database.PostgresDB
	redis *database.RedisClient

	store      interfaces.RecordStore
	bookmarks  interfaces.BookmarkStore
	predictor  *services.GuardedPredictor
	ingestion  *services.IngestionService
	validator  *services.RangeValidator
	engine     *services.ReplayEngine
	simulation *services.SimulationService
	model      *services.ModelService

	closers []func(context.Context) error
}

// newApp connects the configured store, caches and predictor. Telemetry is
// installed separately by the caller.
func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger, std *logging.StandardLogger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		std:      std,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := a.connectStore(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.connectRedis(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}

	bookmarks, err := a.bookmarkStore()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.bookmarks = bookmarks

	var summaries cache.SummaryCache = cache.NewMemorySummaryCache()
	if a.redis != nil {
		summaries = cache.NewRedisSummaryCache(a.redis.Client, 0)
	}

	epoch, err := cfg.Ingestion.EpochTime()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	tracer := telemetry.NewBusinessTracer()
	breaker := services.NewCircuitBreaker("predictor", services.CircuitBreakerConfig{
		FailureThreshold: cfg.Predictor.FailureThreshold,
		Timeout:          cfg.Predictor.ResetTimeoutDuration(),
	}, logger)
	a.predictor = services.NewGuardedPredictor(predictor.NewClient(cfg.Predictor, logger), breaker, a.metrics, tracer, logger)

	a.ingestion = services.NewIngestionService(a.store, summaries, services.IngestionOptions{
		BatchSize: cfg.Ingestion.BatchSize,
		Epoch:     epoch,
	}, a.metrics, tracer, logger)
	a.validator = services.NewRangeValidator(a.store, cfg.Validation.EnforceWindowOrder, a.metrics, tracer, logger)
	a.engine = services.NewReplayEngine(a.store, a.predictor, bookmarks, a.metrics, tracer, logger)
	a.simulation = services.NewSimulationService(a.store, a.engine, nil, cfg.Replay.TickIntervalDuration(), logger)
	a.model = services.NewModelService(a.predictor, logger)
	return a, nil
}

func (a *app) connectStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreDriverMemory:
		a.store = database.NewMemoryStore()
		a.logger.Warn("Using in-memory record store; datasets are lost on restart")
		return nil
	case config.StoreDriverPostgres:
		var db *database.PostgresDB
		err := services.Retry(ctx, a.logger, "postgres_connect", a.connectPolicy(), func(ctx context.Context) error {
			var err error
			db, err = database.NewPostgresConnection(ctx, a.cfg.Database, a.logger)
			return err
		})
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func(context.Context) error {
			db.Close()
			return nil
		})

		pool := database.NewTracedDB(db.Pool, telemetry.GetServiceTracer())
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		a.store = database.NewRecordRepository(pool, a.logger)
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// connectRedis connects when Redis bookmarks are configured (required) or the
// store is Postgres (optional, backs the shared summary cache).
func (a *app) connectRedis(ctx context.Context) error {
	required := a.cfg.Replay.Bookmarks == config.BookmarksRedis
	if !required && a.cfg.Store.Driver != config.StoreDriverPostgres {
		return nil
	}

	var redisClient *database.RedisClient
	err := services.Retry(ctx, a.logger, "redis_connect", a.connectPolicy(), func(ctx context.Context) error {
		var err error
		redisClient, err = database.NewRedisConnection(ctx, a.cfg.Redis, a.logger)
		return err
	})
	if err != nil {
		if required {
			return err
		}
		a.logger.WithError(err).Warn("Redis unavailable, using in-process summary cache")
		return nil
	}
	a.redis = redisClient
	a.closers = append(a.closers, func(context.Context) error {
		redisClient.Close()
		return nil
	})
	return nil
}

func (a *app) connectPolicy() services.RetryPolicy {
	return services.ConnectRetryPolicy(a.cfg.Store.ConnectRetries)
}

func (a *app) bookmarkStore() (interfaces.BookmarkStore, error) {
	switch a.cfg.Replay.Bookmarks {
	case config.BookmarksNone:
		return nil, nil
	case config.BookmarksRedis:
		return cache.NewRedisBookmarkStore(a.redis.Client, a.cfg.Replay.BookmarkTTLDuration(), a.logger), nil
	default:
		lru, err := cache.NewLRUBookmarkStore(a.cfg.Replay.BookmarkCacheSize, a.cfg.Replay.BookmarkTTLDuration())
		if err != nil {
			return nil, fmt.Errorf("failed to create bookmark cache: %w", err)
		}
		return lru, nil
	}
}

// handlers builds the HTTP handlers over the wired services.
func (a *app) handlers(version string) api.Handlers {
	dependencies := make(map[string]handlers.HealthChecker)
	if a.db != nil {
		dependencies["database"] = a.db
	}
	if a.redis != nil {
		dependencies["redis"] = a.redis
	}

	health := handlers.NewHealthHandler(dependencies, a.predictor, a.predictor.Breaker(), version)
	if reporter, ok := a.bookmarks.(handlers.BookmarkReporter); ok {
		health.WithBookmarks(reporter)
	}

	return api.Handlers{
		Health:     health,
		Dataset:    handlers.NewDatasetHandler(a.ingestion, a.validator, a.cfg.Server.MaxUploadMB, a.logger),
		Model:      handlers.NewModelHandler(a.model),
		Simulation: handlers.NewSimulationHandler(a.simulation),
	}
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}

// bootstrap loads configuration and installs logging and telemetry. The
// returned shutdown flushes exporters.
func bootstrap(ctx context.Context) (*config.Config, *logrus.Logger, *logging.StandardLogger, func(context.Context), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogrusLogger(cfg.LogLevel)
	std, otlpLogger := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint != "",
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})

	provider, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Environment, nil)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	shutdown := func(ctx context.Context) {
		if err := provider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
		if otlpLogger != nil {
			if err := otlpLogger.Shutdown(ctx); err != nil {
				logger.WithError(err).Warn("Failed to shutdown OTLP logger")
			}
		}
	}
	return cfg, logger, std, shutdown, nil
}
