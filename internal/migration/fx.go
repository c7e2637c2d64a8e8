package migration

import (
	"context"
	"strings"

	"github.com/smallbiznis/accounts/internal/config"
	"github.com/smallbiznis/accounts/internal/migration/schema"
	"github.com/smallbiznis/accounts/internal/seed"
	userdomain "github.com/smallbiznis/accounts/internal/user/domain"
	"github.com/smallbiznis/accounts/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, users userdomain.Service, log *zap.Logger) error {
		log = log.Named("migration")
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("db_type", cfg.DBType))
		return seed.EnsureSuperuser(context.Background(), users, cfg.Bootstrap, log)
	}),
)

// Apply runs the SQL migrations on PostgreSQL and AutoMigrate elsewhere.
func Apply(conn *gorm.DB, dbType string) error {
	if strings.EqualFold(strings.TrimSpace(dbType), db.TypePostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return schema.AutoMigrate(conn)
}
