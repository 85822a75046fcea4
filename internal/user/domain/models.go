// Package domain contains persistence models for users. A non-superadmin
// user always belongs to exactly one tenant; the role is the ceiling of what
// the user may do, not a per-resource ACL.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/identity"
	"gorm.io/gorm"
)

type User struct {
	ID           int64         `gorm:"primaryKey" json:"id"`
	TenantID     *int64        `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	Email        string        `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Name         string        `gorm:"type:text;not null" json:"name"`
	PasswordHash string        `gorm:"type:text;not null" json:"-"`
	Role         identity.Role `gorm:"type:text;not null" json:"role"`
	Active       bool          `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// AuditMaskedColumns names the columns audit capture must redact.
func (User) AuditMaskedColumns() []string { return []string{"password_hash"} }

// Identity converts the stored row into the resolved caller triple.
func (u User) Identity() identity.Identity {
	return identity.Identity{UserID: u.ID, TenantID: u.TenantID, Role: u.Role}
}

type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateRequest struct {
	ID     int64   `json:"-"`
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, req UpdateRequest) (*User, error)
	Delete(ctx context.Context, id int64) error

	// VerifyCredentials is the login path: it looks the user up across
	// tenant partitions, checks the credential and returns the row for
	// token minting. Inactive users and users of suspended tenants fail.
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]User, error)
	CountByTenant(ctx context.Context, db *gorm.DB, tenantID int64) (int64, error)
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrUserQuotaExceeded  = errors.New("user_quota_exceeded")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserInactive       = errors.New("user_inactive")
	ErrTenantSuspended    = errors.New("tenant_suspended")
)
