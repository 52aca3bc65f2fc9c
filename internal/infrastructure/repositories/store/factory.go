package store

import (
	"context"
	"fmt"

	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
)

// Backend names accepted in store.backend
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// New builds the configured engine without connecting to it. Connection
// problems surface later from Init, which the persistent cache tolerates.
func New(ctx context.Context, cfg config.StoreConfig) (interfaces.Store, error) {
	if err := validateTable(cfg.Table); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory, "":
		logging.Info(ctx, "Creating memory store", logging.Fields{
			"backend": BackendMemory,
			"table":   cfg.Table,
		})
		return NewMemoryStore(), nil

	case BackendRedis:
		logging.Info(ctx, "Creating Redis store", logging.Fields{
			"backend":    BackendRedis,
			"addr":       cfg.Redis.Addr,
			"database":   cfg.Redis.DB,
			"key_prefix": cfg.Redis.KeyPrefix,
		})
		return NewRedisStore(cfg.Redis), nil

	case BackendPostgres:
		logging.Info(ctx, "Creating Postgres store", logging.Fields{
			"backend":  BackendPostgres,
			"host":     cfg.Postgres.Host,
			"database": cfg.Postgres.Database,
			"table":    cfg.Table,
		})
		return NewPostgresStore(ctx, cfg.Postgres, cfg.Table)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}
