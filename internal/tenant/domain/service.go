package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type CreateRequest struct {
	Name      string   `json:"name"`
	Plan      string   `json:"plan"`
	Features  []string `json:"features"`
	MaxUsers  int      `json:"max_users"`
	TrialDays int      `json:"trial_days"`
}

// Service is the superadmin-only tenant management surface. Its operations
// run on the dedicated bypass path; the tenant-scoped code path never reaches
// these.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Tenant, error)
	Get(ctx context.Context, id int64) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Suspend(ctx context.Context, id int64) (*Tenant, error)
	Activate(ctx context.Context, id int64) (*Tenant, error)
	// Delete removes the tenant and cascades through every entity it owns,
	// audit log entries included, in one transaction. System log entries are
	// untouched.
	Delete(ctx context.Context, id int64) error

	GetSettings(ctx context.Context) (*Settings, error)
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*Settings, error)

	ListConnectors(ctx context.Context) ([]ConnectorConfig, error)
	UpsertConnector(ctx context.Context, req ConnectorRequest) (*ConnectorConfig, error)
}

type UpdateSettingsRequest struct {
	CurrencyCode  string         `json:"currency_code"`
	InvoicePrefix string         `json:"invoice_prefix"`
	Extra         map[string]any `json:"extra"`
}

type ConnectorRequest struct {
	ID       int64          `json:"id"`
	Provider string         `json:"provider"`
	Enabled  bool           `json:"enabled"`
	Config   map[string]any `json:"config"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Tenant, error)
	FindAll(ctx context.Context, db *gorm.DB) ([]Tenant, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status Status) error
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPlan     = errors.New("invalid_plan")
	ErrSlugTaken       = errors.New("slug_taken")
	ErrInvalidProvider = errors.New("invalid_provider")
)
