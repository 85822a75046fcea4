package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/ledgerline/internal/config"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	customerrepo "github.com/ledgerline/ledgerline/internal/customer/repository"
	inventoryrepo "github.com/ledgerline/ledgerline/internal/inventory/repository"
	inventorysvc "github.com/ledgerline/ledgerline/internal/inventory/service"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	invoicerepo "github.com/ledgerline/ledgerline/internal/invoice/repository"
	invoicesvc "github.com/ledgerline/ledgerline/internal/invoice/service"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	notificationrepo "github.com/ledgerline/ledgerline/internal/notification/repository"
	notificationsvc "github.com/ledgerline/ledgerline/internal/notification/service"
	productrepo "github.com/ledgerline/ledgerline/internal/product/repository"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	syslogrepo "github.com/ledgerline/ledgerline/internal/syslog/repository"
	syslogsvc "github.com/ledgerline/ledgerline/internal/syslog/service"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	tenantrepo "github.com/ledgerline/ledgerline/internal/tenant/repository"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	sched    *Scheduler
	db       *gorm.DB
	node     *snowflake.Node
	clock    *fakeClock
	invoices invoicedomain.Service
}

func setupScheduler(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Settings{},
		&customerdomain.Customer{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&notificationdomain.Notification{},
		&syslogdomain.Entry{},
	))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)
	alertCfg := config.NewStaticAlertConfigHolder(config.AlertConfig{
		DefaultReorderPoint:    5,
		OverdueAfterDays:       0,
		TrialExpiryWarningDays: 3,
	})

	notifications := notificationsvc.NewService(notificationsvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepo.Provide(),
	})
	inventory := inventorysvc.NewService(inventorysvc.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Repo:          inventoryrepo.Provide(),
		Products:      productrepo.Provide(),
		Notifications: notifications,
		AlertConfig:   alertCfg,
	})
	invoices := invoicesvc.NewService(invoicesvc.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Repo:          invoicerepo.Provide(),
		Customers:     customerrepo.Provide(),
		Products:      productrepo.Provide(),
		Inventory:     inventory,
		Notifications: notifications,
		AlertConfig:   alertCfg,
	})

	syslogs := syslogsvc.NewService(syslogsvc.Params{
		DB: db, Log: log, GenID: node, Repo: syslogrepo.Provide(),
	})
	sched, err := New(Params{
		DB:              db,
		Log:             log,
		Clock:           clk,
		Tenants:         tenantrepo.Provide(),
		InvoiceSvc:      invoices,
		NotificationSvc: notifications,
		SyslogSvc:       syslogs,
		AlertConfig:     alertCfg,
	})
	require.NoError(t, err)

	return &fixture{sched: sched, db: db, node: node, clock: clk, invoices: invoices}
}

func (f *fixture) seedTenant(t *testing.T, status tenantdomain.Status, trialEndsAt *time.Time) *tenantdomain.Tenant {
	t.Helper()
	tenant := &tenantdomain.Tenant{
		ID:          f.node.Generate().Int64(),
		Name:        "Shop",
		Slug:        "shop-" + f.node.Generate().String(),
		Plan:        "starter",
		Status:      status,
		MaxUsers:    5,
		TrialEndsAt: trialEndsAt,
	}
	require.NoError(t, f.db.Create(tenant).Error)
	require.NoError(t, f.db.Create(&tenantdomain.Settings{
		ID:             f.node.Generate().Int64(),
		TenantID:       tenant.ID,
		CurrencyCode:   "USD",
		InvoicePrefix:  "INV",
		NextInvoiceSeq: 1,
	}).Error)
	return tenant
}

// seedIssuedInvoice creates and issues an invoice due in the past.
func (f *fixture) seedIssuedInvoice(t *testing.T, tenantID int64, due time.Time) *invoicedomain.Invoice {
	t.Helper()
	ctx := tenantctx.WithTenantID(context.Background(), tenantID)
	customer := &customerdomain.Customer{
		ID: f.node.Generate().Int64(), TenantID: tenantID, Name: "Customer",
	}
	require.NoError(t, f.db.Create(customer).Error)

	desc := "Consulting"
	price := decimal.NewFromInt(100)
	invoice, err := f.invoices.Create(ctx, invoicedomain.CreateRequest{
		CustomerID: customer.ID,
		DueDate:    &due,
		Lines:      []invoicedomain.LineInput{{Description: &desc, UnitPrice: &price, Quantity: 1}},
	})
	require.NoError(t, err)
	issued, err := f.invoices.Issue(ctx, invoice.ID)
	require.NoError(t, err)
	return issued
}

func (f *fixture) tenantStatus(t *testing.T, id int64) tenantdomain.Status {
	t.Helper()
	var tenant tenantdomain.Tenant
	require.NoError(t, f.db.First(&tenant, "id = ?", id).Error)
	return tenant.Status
}

func (f *fixture) invoiceStatus(t *testing.T, id int64) invoicedomain.Status {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", id).Error)
	return invoice.Status
}

func (f *fixture) systemLogCount(t *testing.T, message string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&syslogdomain.Entry{}).
		Where("message = ?", message).
		Count(&count).Error)
	return count
}

func (f *fixture) trialWarningCount(t *testing.T, tenantID int64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&notificationdomain.Notification{}).
		Where("category = ? AND entity_type = ?", notificationdomain.CategorySystem, "tenant").
		Where("entity_id = ?", fmt.Sprintf("%d", tenantID)).
		Count(&count).Error)
	return count
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceFlagsOverdueInvoices(t *testing.T) {
	f := setupScheduler(t)
	tenant := f.seedTenant(t, tenantdomain.StatusActive, nil)
	invoice := f.seedIssuedInvoice(t, tenant.ID, f.clock.Now().Add(-48*time.Hour))

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, invoicedomain.StatusOverdue, f.invoiceStatus(t, invoice.ID))
	assert.Equal(t, int64(1), f.systemLogCount(t, "invoices flagged overdue"))

	// A second pass finds nothing issued and changes nothing.
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, invoicedomain.StatusOverdue, f.invoiceStatus(t, invoice.ID))
	assert.Equal(t, int64(1), f.systemLogCount(t, "invoices flagged overdue"))
}

func TestRunOnceSkipsSuspendedTenant(t *testing.T) {
	f := setupScheduler(t)
	tenant := f.seedTenant(t, tenantdomain.StatusActive, nil)
	invoice := f.seedIssuedInvoice(t, tenant.ID, f.clock.Now().Add(-48*time.Hour))
	require.NoError(t, f.db.Model(&tenantdomain.Tenant{}).
		Where("id = ?", tenant.ID).
		Update("status", tenantdomain.StatusSuspended).Error)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, invoicedomain.StatusIssued, f.invoiceStatus(t, invoice.ID))
}

func TestRunOnceExpiresLapsedTrial(t *testing.T) {
	f := setupScheduler(t)
	ends := f.clock.Now().Add(-time.Hour)
	tenant := f.seedTenant(t, tenantdomain.StatusTrial, &ends)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, tenantdomain.StatusExpired, f.tenantStatus(t, tenant.ID))
	assert.Zero(t, f.trialWarningCount(t, tenant.ID))
	assert.Equal(t, int64(1), f.systemLogCount(t, "trial expired"))
}

func TestRunOnceWarnsExpiringTrialOncePerDay(t *testing.T) {
	f := setupScheduler(t)
	ends := f.clock.Now().Add(48 * time.Hour) // inside the 3 day window
	tenant := f.seedTenant(t, tenantdomain.StatusTrial, &ends)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, int64(1), f.trialWarningCount(t, tenant.ID))

	// Same day: the earlier warning suppresses a repeat.
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, int64(1), f.trialWarningCount(t, tenant.ID))

	f.clock.Advance(25 * time.Hour)
	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, int64(2), f.trialWarningCount(t, tenant.ID))
	assert.Equal(t, tenantdomain.StatusTrial, f.tenantStatus(t, tenant.ID))
}

func TestRunOnceOutsideWarningWindowStaysQuiet(t *testing.T) {
	f := setupScheduler(t)
	ends := f.clock.Now().Add(10 * 24 * time.Hour)
	tenant := f.seedTenant(t, tenantdomain.StatusTrial, &ends)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Zero(t, f.trialWarningCount(t, tenant.ID))
	assert.Equal(t, tenantdomain.StatusTrial, f.tenantStatus(t, tenant.ID))
}
