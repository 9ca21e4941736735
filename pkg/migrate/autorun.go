package migrate

import (
	"context"
	"fmt"

	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/logger"
)

// MaybeRunDev migrates the schema on boot in dev when the auto-migrate flag
// is set. Postgres runs the goose files; sqlite, which cannot run their enum
// and array DDL, is synced from the gorm models instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	dialect := Dialect(cfg.DB)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir, "dialect": dialect})

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "syncing sqlite schema from models on dev boot")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	logg.Info(ctx, "running goose migrations on dev boot")
	if err := Run(ctx, sqlDB, dialect, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "goose migrations completed")
	return nil
}
