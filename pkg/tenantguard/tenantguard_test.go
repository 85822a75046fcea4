package tenantguard

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type guardedItem struct {
	ID       int64 `gorm:"primaryKey"`
	TenantID int64 `gorm:"column:tenant_id;not null;index"`
	Name     string
}

type globalItem struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func setupGuardDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&guardedItem{}, &globalItem{}))
	require.NoError(t, db.Use(New()))
	return db
}

func seedGuardedItems(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []guardedItem{
		{ID: 1, TenantID: 1, Name: "one-a"},
		{ID: 2, TenantID: 1, Name: "one-b"},
		{ID: 3, TenantID: 2, Name: "two-a"},
	}
	require.NoError(t, db.Create(&rows).Error)
}

func TestQueryScopedToContextTenant(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	ctx := tenantctx.WithTenantID(context.Background(), 1)
	var items []guardedItem
	require.NoError(t, db.WithContext(ctx).Find(&items).Error)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, int64(1), item.TenantID)
	}
}

func TestCrossTenantLookupFindsNothing(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	// Row 3 belongs to tenant 2; tenant 1 must not see it, and the miss
	// must look exactly like a nonexistent row.
	ctx := tenantctx.WithTenantID(context.Background(), 1)
	var item guardedItem
	err := db.WithContext(ctx).First(&item, "id = ?", 3).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMissingTenantFailsClosed(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	var items []guardedItem
	err := db.WithContext(context.Background()).Find(&items).Error
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)
}

func TestUpdateAndDeleteScoped(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	ctx := tenantctx.WithTenantID(context.Background(), 1)

	// The update targets every row by name, but only tenant 1's copy moves.
	res := db.WithContext(ctx).Model(&guardedItem{}).
		Where("name LIKE ?", "%-a").
		Update("name", "renamed")
	require.NoError(t, res.Error)
	assert.Equal(t, int64(1), res.RowsAffected)

	res = db.WithContext(ctx).Where("1 = 1").Delete(&guardedItem{})
	require.NoError(t, res.Error)
	assert.Equal(t, int64(2), res.RowsAffected)

	var remaining []guardedItem
	require.NoError(t, db.WithContext(tenantctx.WithBypass(context.Background())).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].TenantID)
}

func TestBypassSeesEveryTenant(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	ctx := tenantctx.WithBypass(context.Background())
	var items []guardedItem
	require.NoError(t, db.WithContext(ctx).Find(&items).Error)
	assert.Len(t, items, 3)
}

func TestModelWithoutTenantColumnUnaffected(t *testing.T) {
	db := setupGuardDB(t)
	require.NoError(t, db.Create(&globalItem{ID: 1, Name: "shared"}).Error)

	// No tenant in context, but the model is not partitioned.
	var items []globalItem
	require.NoError(t, db.WithContext(context.Background()).Find(&items).Error)
	assert.Len(t, items, 1)
}

func TestExplicitTenantPredicateNotDuplicated(t *testing.T) {
	db := setupGuardDB(t)
	seedGuardedItems(t, db)

	ctx := tenantctx.WithTenantID(context.Background(), 2)
	var items []guardedItem
	err := db.WithContext(ctx).Where("tenant_id = ?", int64(2)).Find(&items).Error
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
