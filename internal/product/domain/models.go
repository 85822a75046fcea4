// Package domain contains persistence models for products. The stored stock
// quantity is a cache derived from the stock movement ledger; the ledger is
// authoritative and the cache is refreshed from it, never the other way
// around.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	TenantID      int64           `gorm:"column:tenant_id;not null;index;uniqueIndex:ux_products_tenant_sku,priority:1" json:"tenant_id"`
	SKU           string          `gorm:"column:sku;type:text;not null;uniqueIndex:ux_products_tenant_sku,priority:2" json:"sku"`
	Name          string          `gorm:"type:text;not null" json:"name"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	StockQuantity int64           `gorm:"not null;default:0" json:"stock_quantity"`
	// ReorderPoint of nil falls back to the alerting config default.
	ReorderPoint *int64    `json:"reorder_point,omitempty"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

type CreateRequest struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ReorderPoint *int64          `json:"reorder_point"`
}

type UpdateRequest struct {
	ID           int64            `json:"-"`
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	ReorderPoint *int64           `json:"reorder_point"`
	Active       *bool            `json:"active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, req UpdateRequest) (*Product, error)
	Delete(ctx context.Context, id int64) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Product, error)
}

var (
	ErrNotFound     = errors.New("not_found")
	ErrInvalidSKU   = errors.New("invalid_sku")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrSKUTaken     = errors.New("sku_taken")
)
