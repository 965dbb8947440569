package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
	Logger *zap.Logger
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Info("storage: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Info("storage: using gorm backend", zap.String("driver", drv))
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage migrate: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
