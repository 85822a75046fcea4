// Package domain contains persistence models for customers.
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int64             `gorm:"primaryKey" json:"id"`
	TenantID  int64             `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Email     *string           `gorm:"type:text" json:"email,omitempty"`
	Phone     *string           `gorm:"type:text" json:"phone,omitempty"`
	Address   *string           `gorm:"type:text" json:"address,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

type CreateRequest struct {
	Name     string         `json:"name"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	Address  *string        `json:"address"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	ID      int64   `json:"-"`
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Customer, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Update(ctx context.Context, req UpdateRequest) (*Customer, error)
	Delete(ctx context.Context, id int64) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Customer, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Customer, error)
}

var (
	ErrNotFound    = errors.New("not_found")
	ErrInvalidName = errors.New("invalid_name")
)
