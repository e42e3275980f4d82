package migration

import (
	"strings"

	"github.com/znapsite/platform/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, logger *zap.Logger) error {
		// The embedded migrations target postgres; other dialects manage
		// their own schema (sqlite is test-only).
		if !strings.EqualFold(cfg.DBType, "postgres") {
			logger.Warn("skipping migrations for non-postgres database", zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
