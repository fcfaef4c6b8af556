package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-management/config"
	"github.com/oksasatya/go-ddd-user-management/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/go-ddd-user-management/internal/infrastructure/postgres"
)

// OpenUserStore builds the user store selected by cfg.StoreDriver and registers it.
// The returned func releases its resources.
func OpenUserStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		repo := memory.NewUserRepository()
		SetUserStore(repo, repo)
		logger.Warn("using in-memory user store; data is lost on exit")
		return func() {}, nil
	case "postgres", "":
		if cfg.RunMigrations {
			if err := pginfra.Migrate(cfg.PostgresDSN(), "up", logger); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			return nil, err
		}
		tx := pginfra.NewTxManager(pool, logger)
		SetPGPool(pool)
		SetUserStore(pginfra.NewUserRepository(pool, tx), tx)
		return pool.Close, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
