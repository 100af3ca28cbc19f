// Package bootstrap builds the dependency graph shared by the HTTP service
// and the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/config"
	"github.com/PratikDhanave/attendance-sync-service/internal/lock"
	"github.com/PratikDhanave/attendance-sync-service/internal/metrics"
	"github.com/PratikDhanave/attendance-sync-service/internal/migration"
	"github.com/PratikDhanave/attendance-sync-service/internal/purge"
	"github.com/PratikDhanave/attendance-sync-service/internal/source"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

// App holds the wired components. Close releases them.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Source   *source.SQLiteOpener
	Sink     store.Sink
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Engine   *migration.Engine
	Runner   *migration.Runner
	Reporter *migration.Reporter
	Purge    *purge.Service

	redis *redis.Client
}

// New connects to the sink (and Redis when configured) and wires the
// engine, runner, reporter and purge service.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sink, err := store.Open(ctx, cfg.Sink, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Source:   source.NewSQLiteOpener(cfg.Source.Path, cfg.Source.Table, logger),
		Sink:     sink,
		Registry: reg,
		Metrics:  m,
	}

	var (
		locker lock.Locker = lock.NewLocalLocker()
		tokens purge.TokenStore
	)
	if cfg.Redis.URL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			sink.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.redis = client
		locker = lock.NewRedisLocker(client, lock.DefaultKey, cfg.Lock.TTL)
		tokens = purge.NewRedisTokens(client)
		logger.Info("Using Redis for migration lock and purge tokens")
	}

	app.Engine = migration.NewEngine(app.Source, sink, migration.Options{
		BatchSize: cfg.Migration.BatchSize,
		Pace:      cfg.Migration.Pace,
		Retry: migration.RetryPolicy{
			BatchSize:     cfg.Retry.BatchSize,
			BatchAttempts: cfg.Retry.BatchAttempts,
			ItemAttempts:  cfg.Retry.ItemAttempts,
			BatchPace:     cfg.Retry.BatchPace,
			ItemPace:      cfg.Retry.ItemPace,
		},
		Metrics: m,
		Logger:  logger,
	})
	app.Runner = migration.NewRunner(app.Engine, locker, m, logger)
	app.Reporter = migration.NewReporter(app.Source, sink, m)
	app.Purge = purge.NewService(sink, tokens, cfg.Purge.TokenTTL, m, logger)

	return app, nil
}

// Close stops background runs and releases connections.
func (a *App) Close(ctx context.Context) {
	if err := a.Runner.Shutdown(ctx); err != nil {
		a.Logger.Warn("Background migration did not stop in time", zap.Error(err))
	}
	a.Sink.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
