package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/inventory/domain"
	"github.com/ledgerline/ledgerline/internal/inventory/repository"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	notificationrepo "github.com/ledgerline/ledgerline/internal/notification/repository"
	notificationsvc "github.com/ledgerline/ledgerline/internal/notification/service"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	productrepo "github.com/ledgerline/ledgerline/internal/product/repository"
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

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func setupInventory(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&productdomain.Product{},
		&domain.StockMovement{},
		&notificationdomain.Notification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)
	alertCfg := config.NewStaticAlertConfigHolder(config.AlertConfig{DefaultReorderPoint: 5})

	notifications := notificationsvc.NewService(notificationsvc.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepo.Provide(),
	})
	svc := NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Repo:          repository.Provide(),
		Products:      productrepo.Provide(),
		Notifications: notifications,
		AlertConfig:   alertCfg,
	})
	return &fixture{svc: svc, db: db, node: node}
}

func (f *fixture) seedProduct(t *testing.T, tenantID int64, reorderPoint *int64) *productdomain.Product {
	t.Helper()
	product := &productdomain.Product{
		ID:           f.node.Generate().Int64(),
		TenantID:     tenantID,
		SKU:          "SKU-" + f.node.Generate().String(),
		Name:         "Widget",
		UnitPrice:    decimal.NewFromInt(10),
		ReorderPoint: reorderPoint,
		Active:       true,
	}
	require.NoError(t, f.db.Create(product).Error)
	return product
}

func (f *fixture) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	var product productdomain.Product
	require.NoError(t, f.db.First(&product, "id = ?", productID).Error)
	return product.StockQuantity
}

func (f *fixture) alertCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&notificationdomain.Notification{}).
		Where("category = ?", notificationdomain.CategoryInventory).
		Count(&count).Error)
	return count
}

func TestRecordUpdatesStockCache(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	product := f.seedProduct(t, 1, nil)

	_, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.stockOf(t, product.ID))

	movement, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: -4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.stockOf(t, product.ID))
	assert.Equal(t, product.TenantID, movement.TenantID)
}

func TestRecordValidation(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	product := f.seedProduct(t, 1, nil)

	_, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: "evaporation", Quantity: -1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementAdjustment, Quantity: 0,
	})
	assert.ErrorIs(t, err, domain.ErrZeroQuantity)

	// Sales reduce stock, purchases add it; the sign is part of the type.
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: -5,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: 987654, Type: domain.MovementPurchase, Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestLowStockAlertsOnDownwardCrossingOnly(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	rp := int64(5)
	product := f.seedProduct(t, 1, &rp)

	_, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: 10,
	})
	require.NoError(t, err)
	assert.Zero(t, f.alertCount(t))

	// 10 -> 4 crosses the reorder point.
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: -6,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.alertCount(t))

	// 4 -> 3 stays below it; no repeat alert.
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.alertCount(t))

	// Restock above, then cross again.
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: 10,
	})
	require.NoError(t, err)
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: -9,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.alertCount(t))
}

func TestDefaultReorderPointApplies(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	product := f.seedProduct(t, 1, nil) // falls back to the default of 5

	_, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: 20,
	})
	require.NoError(t, err)
	_, err = f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementSale, Quantity: -16,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.alertCount(t))
}

func TestReconcileRepairsDriftedCache(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	product := f.seedProduct(t, 1, nil)

	_, err := f.svc.Record(ctx, domain.RecordRequest{
		ProductID: product.ID, Type: domain.MovementPurchase, Quantity: 8,
	})
	require.NoError(t, err)

	// Corrupt the cache behind the ledger's back.
	require.NoError(t, f.db.Model(&productdomain.Product{}).
		Where("id = ?", product.ID).
		Update("stock_quantity", 999).Error)

	reconciled, err := f.svc.Reconcile(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), reconciled)
	assert.Equal(t, int64(8), f.stockOf(t, product.ID))
}

func TestListFiltersByProductAndType(t *testing.T) {
	f := setupInventory(t)
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	first := f.seedProduct(t, 1, nil)
	second := f.seedProduct(t, 1, nil)

	for _, req := range []domain.RecordRequest{
		{ProductID: first.ID, Type: domain.MovementPurchase, Quantity: 5},
		{ProductID: first.ID, Type: domain.MovementSale, Quantity: -2},
		{ProductID: second.ID, Type: domain.MovementPurchase, Quantity: 1},
	} {
		_, err := f.svc.Record(ctx, req)
		require.NoError(t, err)
	}

	movements, err := f.svc.List(ctx, domain.ListRequest{ProductID: &first.ID})
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	saleType := domain.MovementSale
	movements, err = f.svc.List(ctx, domain.ListRequest{Type: &saleType})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, first.ID, movements[0].ProductID)
}
