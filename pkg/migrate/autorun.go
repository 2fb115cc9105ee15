package migrate

import (
	"context"
	"fmt"

	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/db"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup when running in
// dev with GIFTSHOP_AUTO_MIGRATE set. Other environments run the
// migrate binary instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	migrator, err := New(sqlDB, "")
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	version, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"schema_version": version,
		"applied":        len(applied),
	}), "embedded migrations applied")
	return nil
}
