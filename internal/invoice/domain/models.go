// Package domain contains invoice persistence models and the lifecycle
// contract. Status transitions are closed: draft -> issued -> paid, with void
// reachable from draft and issued, and overdue flagged on issued invoices
// past their due date.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusIssued  Status = "issued"
	StatusPaid    Status = "paid"
	StatusVoid    Status = "void"
	StatusOverdue Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusVoid, StatusOverdue:
		return true
	}
	return false
}

type Invoice struct {
	ID         int64 `gorm:"primaryKey" json:"id"`
	TenantID   int64 `gorm:"column:tenant_id;not null;index;uniqueIndex:ux_invoices_tenant_number,priority:1" json:"tenant_id"`
	CustomerID int64 `gorm:"not null;index" json:"customer_id"`
	// Number is empty until the invoice is issued.
	Number    *string         `gorm:"type:text;uniqueIndex:ux_invoices_tenant_number,priority:2" json:"number,omitempty"`
	Status    Status          `gorm:"type:text;not null;default:draft" json:"status"`
	IssuedAt  *time.Time      `json:"issued_at,omitempty"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
	VoidedAt  *time.Time      `json:"voided_at,omitempty"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"tax_amount"`
	Total     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
	Notes     *string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Lines []LineItem `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

type LineItem struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	TenantID    int64           `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	InvoiceID   int64           `gorm:"not null;index" json:"invoice_id"`
	ProductID   *int64          `gorm:"index" json:"product_id,omitempty"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// LineInput describes one requested line. ProductID lines default their
// description and unit price from the product row.
type LineInput struct {
	ProductID   *int64           `json:"product_id"`
	Description *string          `json:"description"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type CreateRequest struct {
	CustomerID int64            `json:"customer_id"`
	DueDate    *time.Time       `json:"due_date"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	Notes      *string          `json:"notes"`
	Lines      []LineInput      `json:"lines"`
}

// UpdateRequest replaces a draft invoice's mutable fields. Lines of nil
// leaves the existing lines alone.
type UpdateRequest struct {
	ID         int64            `json:"-"`
	CustomerID *int64           `json:"customer_id"`
	DueDate    *time.Time       `json:"due_date"`
	TaxRate    *decimal.Decimal `json:"tax_rate"`
	Notes      *string          `json:"notes"`
	Lines      []LineInput      `json:"lines"`
}

type ListRequest struct {
	Status     *Status `form:"status"`
	CustomerID *int64  `form:"customer_id"`
	Limit      int     `form:"limit"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Invoice, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, error)
	Update(ctx context.Context, req UpdateRequest) (*Invoice, error)
	Delete(ctx context.Context, id int64) error
	// Issue numbers the invoice from the tenant's settings sequence and
	// posts sale movements for its product lines.
	Issue(ctx context.Context, id int64) (*Invoice, error)
	Pay(ctx context.Context, id int64) (*Invoice, error)
	// Void reverses the stock posted at issue time for issued invoices.
	Void(ctx context.Context, id int64) (*Invoice, error)
	// ProcessOverdue flags issued invoices past their due date and emits
	// one notification per flagged invoice.
	ProcessOverdue(ctx context.Context) ([]Invoice, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Invoice, error)
	FindAll(ctx context.Context, db *gorm.DB, req ListRequest) ([]Invoice, error)
	FindIssuedDueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]Invoice, error)
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrNotDraft          = errors.New("invoice_not_draft")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrNoLines           = errors.New("invoice_has_no_lines")
	ErrInvalidQuantity   = errors.New("invalid_line_quantity")
	ErrInvalidLine       = errors.New("invalid_line")
	ErrCustomerNotFound  = errors.New("customer_not_found")
	ErrProductNotFound   = errors.New("product_not_found")
)
