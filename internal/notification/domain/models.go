// Package domain contains notification persistence models. A notification with
// a nil UserID is a tenant-wide broadcast; read state on a broadcast is shared
// by every recipient rather than tracked per user.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/pkg/db/pagination"
	"gorm.io/gorm"
)

type Type string

const (
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeSuccess Type = "success"
)

func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeWarning, TypeError, TypeSuccess:
		return true
	}
	return false
}

type Category string

const (
	CategorySystem    Category = "system"
	CategoryInventory Category = "inventory"
	CategoryInvoice   Category = "invoice"
	CategoryUser      Category = "user"
	CategoryPayment   Category = "payment"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySystem, CategoryInventory, CategoryInvoice, CategoryUser, CategoryPayment:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Notification struct {
	ID       int64 `gorm:"primaryKey" json:"id"`
	TenantID int64 `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	// UserID of nil addresses every user of the tenant.
	UserID     *int64     `gorm:"index" json:"user_id,omitempty"`
	Type       Type       `gorm:"type:text;not null" json:"type"`
	Category   Category   `gorm:"type:text;not null" json:"category"`
	Priority   Priority   `gorm:"type:text;not null;default:medium" json:"priority"`
	Title      string     `gorm:"type:text;not null" json:"title"`
	Message    string     `gorm:"type:text;not null" json:"message"`
	EntityType *string    `gorm:"type:text" json:"entity_type,omitempty"`
	EntityID   *string    `gorm:"type:text" json:"entity_id,omitempty"`
	Read       bool       `gorm:"not null;default:false" json:"read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

// EntityRef points a notification at the record that caused it.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type NotifyRequest struct {
	UserID    *int64     `json:"user_id"`
	Type      Type       `json:"type"`
	Category  Category   `json:"category"`
	Priority  Priority   `json:"priority"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Entity    *EntityRef `json:"entity"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type ListRequest struct {
	pagination.Pagination
	UserID         *int64    `form:"user_id"`
	Unread         *bool     `form:"unread"`
	Type           *Type     `form:"type"`
	Category       *Category `form:"category"`
	Priority       *Priority `form:"priority"`
	IncludeExpired bool      `form:"include_expired"`
}

type ListResponse struct {
	Data        []Notification      `json:"data"`
	UnreadCount int64               `json:"unread_count"`
	PageInfo    pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Notify(ctx context.Context, req NotifyRequest) (*Notification, error)
	Get(ctx context.Context, id int64) (*Notification, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	MarkAsRead(ctx context.Context, id int64) (*Notification, error)
}

// Cursor positions a page in the notification stream, newest first.
type Cursor struct {
	ID        int64
	CreatedAt time.Time
}

// ListFilter narrows repository queries. Zero-value fields are ignored.
type ListFilter struct {
	UserID         *int64
	Unread         *bool
	Type           *Type
	Category       *Category
	Priority       *Priority
	IncludeExpired bool
	Now            time.Time
	Cursor         *Cursor
	Limit          int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Notification, error)
	CountUnread(ctx context.Context, db *gorm.DB, filter ListFilter) (int64, error)
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrInvalidType      = errors.New("invalid_type")
	ErrInvalidCategory  = errors.New("invalid_category")
	ErrInvalidPriority  = errors.New("invalid_priority")
	ErrInvalidTitle     = errors.New("invalid_title")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
