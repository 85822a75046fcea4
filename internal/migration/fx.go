package migration

import (
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if err := seed.EnsureSuperadmin(conn, cfg.SeedSuperadminEmail, cfg.SeedSuperadminPassword); err != nil {
			return err
		}
		if cfg.SeedDemoTenant {
			return seed.EnsureDemoTenant(conn)
		}
		return nil
	}),
)
