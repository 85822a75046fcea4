// Package migration brings the database schema up on startup so the app is
// usable out of the box for local and self-hosted environments. Postgres goes
// through versioned SQL migrations; other dialects fall back to AutoMigrate.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	return nil
}

// Models is the full persisted model set, in dependency order.
func Models() []any {
	return []any{
		&tenantdomain.Tenant{},
		&tenantdomain.Settings{},
		&tenantdomain.ConnectorConfig{},
		&userdomain.User{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&inventorydomain.StockMovement{},
		&notificationdomain.Notification{},
		&auditdomain.Entry{},
		&syslogdomain.Entry{},
	}
}

// AutoMigrate covers the sqlite and mysql development paths that the
// versioned postgres migrations do not.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
