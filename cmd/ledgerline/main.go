package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/audit"
	"github.com/ledgerline/ledgerline/internal/audit/capture"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/customer"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	"github.com/ledgerline/ledgerline/internal/identity"
	"github.com/ledgerline/ledgerline/internal/inventory"
	"github.com/ledgerline/ledgerline/internal/invoice"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/migration"
	"github.com/ledgerline/ledgerline/internal/notification"
	"github.com/ledgerline/ledgerline/internal/product"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	"github.com/ledgerline/ledgerline/internal/ratelimit"
	"github.com/ledgerline/ledgerline/internal/scheduler"
	"github.com/ledgerline/ledgerline/internal/server"
	"github.com/ledgerline/ledgerline/internal/syslog"
	"github.com/ledgerline/ledgerline/internal/tenant"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	"github.com/ledgerline/ledgerline/internal/user"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	"github.com/ledgerline/ledgerline/pkg/db"
	"github.com/ledgerline/ledgerline/pkg/tenantguard"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		identity.Module,

		// The guard must see every statement before the audit capture
		// does; registration order is load-bearing.
		fx.Invoke(RegisterDataPlugins),
		migration.Module,

		tenant.Module,
		user.Module,
		customer.Module,
		product.Module,
		inventory.Module,
		invoice.Module,
		notification.Module,
		audit.Module,
		syslog.Module,
		ratelimit.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RegisterDataPlugins installs the tenant isolation guard and the audit
// capture callbacks on the shared gorm handle.
func RegisterDataPlugins(conn *gorm.DB, log *zap.Logger, node *snowflake.Node) error {
	if err := conn.Use(tenantguard.New()); err != nil {
		return err
	}
	return conn.Use(capture.New(log, node,
		&invoicedomain.Invoice{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&userdomain.User{},
		&tenantdomain.ConnectorConfig{},
		&tenantdomain.Settings{},
	))
}
