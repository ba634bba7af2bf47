package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhouzirui/mindcare/backend/internal/config"
	"github.com/zhouzirui/mindcare/backend/internal/store"
	"github.com/zhouzirui/mindcare/backend/internal/store/gormstore"
	"github.com/zhouzirui/mindcare/backend/internal/store/pgstore"
)

// OpenStore connects the configured backend, migrating the schema first when
// cfg.Migrate is set.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.Migrate {
			if err := pgstore.RunMigrations(cfg.DSN); err != nil {
				return nil, err
			}
		}
		pool, err := pgstore.NewPool(ctx, cfg.DSN, pgstore.PoolOptions{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database", "driver", cfg.Driver)
		return pgstore.New(pool), nil
	default:
		st, err := gormstore.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, err
			}
		}
		logger.Info("connected to database", "driver", cfg.Driver)
		return st, nil
	}
}

// Migrate brings the schema of the configured backend up to date.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) error {
	cfg.Migrate = true
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Driver, err)
	}
	return st.Close()
}
