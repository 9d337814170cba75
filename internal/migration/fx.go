package migration

import (
	"context"

	"github.com/smallbiznis/crowdspace/internal/config"
	organizationdomain "github.com/smallbiznis/crowdspace/internal/organization/domain"
	"github.com/smallbiznis/crowdspace/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}
		log.Named("migrations").Info("schema ready", zap.String("dialect", cfg.DBType))
		return nil
	}),
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, orgs organizationdomain.Service, log *zap.Logger) error {
		return seed.EnsureDefaultOrganization(context.Background(), conn, orgs, cfg.Bootstrap, log)
	}),
)
