package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/config"
)

// Open connects to the configured sink backend. With AutoMigrate set the
// schema is brought up to date before the sink is returned.
func Open(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		if cfg.AutoMigrate {
			if err := MigratePostgres(cfg.URL, cfg.Key); err != nil {
				return nil, err
			}
			logger.Info("Applied sink migrations", zap.String("backend", cfg.Backend))
		}
		s, err := NewPostgresSink(cfg.URL, cfg.Key, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("connect postgres sink: %w", err)
		}
		logger.Info("Connected to sink", zap.String("backend", cfg.Backend), zap.String("table", cfg.Table))
		return s, nil

	case config.BackendSurrealDB:
		s, err := NewSurrealSink(ctx, cfg.URL, cfg.Namespace, cfg.Database, cfg.Username, cfg.Key, cfg.Table)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := s.Migrate(ctx); err != nil {
				s.Close()
				return nil, fmt.Errorf("define surrealdb schema: %w", err)
			}
		}
		logger.Info("Connected to sink",
			zap.String("backend", cfg.Backend),
			zap.String("namespace", cfg.Namespace),
			zap.String("database", cfg.Database),
			zap.String("table", cfg.Table))
		return s, nil

	case config.BackendMemory:
		logger.Warn("Using in-memory sink; records are lost on exit")
		return NewMemorySink(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
