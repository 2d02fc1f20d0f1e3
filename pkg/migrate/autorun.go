package migrate

import (
	"context"
	"fmt"

	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/db"
	"github.com/watchfi/storefront/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot when running in dev
// with auto-migrate enabled. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	source, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, client.Driver(), source)
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"file":        step.File,
			"duration_ms": step.Duration.Milliseconds(),
		}), "migrate.applied")
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"driver": client.Driver(), "applied": len(applied)}), "migrate.autorun.done")
	return nil
}
