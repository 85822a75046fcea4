// Package domain contains the stock movement ledger models. The ledger is
// append-only and authoritative: the product row's stock quantity is a cache
// recomputed from the signed sum of its movements.
package domain

import (
	"context"
	"errors"
	"time"

	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementPurchase   MovementType = "purchase"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementPurchase, MovementAdjustment, MovementReturn:
		return true
	}
	return false
}

type StockMovement struct {
	ID        int64        `gorm:"primaryKey" json:"id"`
	TenantID  int64        `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	ProductID int64        `gorm:"not null;index" json:"product_id"`
	Type      MovementType `gorm:"type:text;not null" json:"type"`
	// Quantity is a signed delta; sales are negative, purchases positive.
	Quantity      int64            `gorm:"not null" json:"quantity"`
	UnitCost      *decimal.Decimal `gorm:"type:decimal(18,4)" json:"unit_cost,omitempty"`
	ReferenceType *string          `gorm:"type:text" json:"reference_type,omitempty"`
	ReferenceID   *string          `gorm:"type:text" json:"reference_id,omitempty"`
	UserID        *int64           `json:"user_id,omitempty"`
	Note          *string          `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (StockMovement) TableName() string { return "stock_movements" }

// Reference points a movement at the record that caused it, e.g. an invoice.
type Reference struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type RecordRequest struct {
	ProductID int64            `json:"product_id"`
	Type      MovementType     `json:"type"`
	Quantity  int64            `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	Reference *Reference       `json:"reference"`
	Note      *string          `json:"note"`
}

type ListRequest struct {
	ProductID *int64        `form:"product_id"`
	Type      *MovementType `form:"type"`
	Limit     int           `form:"limit"`
}

// Posting is the outcome of one applied movement: the ledger row plus the
// cached stock before and after. Callers feed postings to AlertLowStock once
// their transaction has committed.
type Posting struct {
	Movement StockMovement
	Product  productdomain.Product
	OldStock int64
	NewStock int64
}

type Service interface {
	// Record appends a movement and refreshes the product's cached stock
	// quantity from the ledger in the same transaction.
	Record(ctx context.Context, req RecordRequest) (*StockMovement, error)
	// Post applies movements inside the caller's transaction, for flows
	// that must move stock atomically with their own writes.
	Post(ctx context.Context, tx *gorm.DB, reqs []RecordRequest) ([]Posting, error)
	// AlertLowStock emits reorder-point notifications for postings whose
	// stock crossed below the threshold. Call it after commit.
	AlertLowStock(ctx context.Context, postings []Posting)
	// Reconcile recomputes a product's stock from the ledger sum and
	// rewrites the cache, returning the reconciled quantity.
	Reconcile(ctx context.Context, productID int64) (int64, error)
	List(ctx context.Context, req ListRequest) ([]StockMovement, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, movement *StockMovement) error
	SumQuantity(ctx context.Context, db *gorm.DB, productID int64) (int64, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]StockMovement, error)
}

var (
	ErrProductNotFound = errors.New("product_not_found")
	ErrInvalidType     = errors.New("invalid_movement_type")
	ErrZeroQuantity    = errors.New("zero_quantity")
	ErrInvalidQuantity = errors.New("invalid_quantity_sign")
)
