// Package domain contains persistence models for tenants: the unit of data
// partitioning. Every tenant-scoped entity hangs off a row here; removing a
// tenant cascades through everything it owns, audit trail included.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusTrial     Status = "trial"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusTrial, StatusExpired:
		return true
	default:
		return false
	}
}

// Tenant is an isolated customer organization.
type Tenant struct {
	ID          int64                       `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"type:text;not null" json:"name"`
	Slug        string                      `gorm:"type:text;not null;uniqueIndex:ux_tenants_slug" json:"slug"`
	Plan        string                      `gorm:"type:text;not null" json:"plan"`
	Status      Status                      `gorm:"type:text;not null" json:"status"`
	Features    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"features"`
	MaxUsers    int                         `gorm:"not null;default:5" json:"max_users"`
	TrialEndsAt *time.Time                  `json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// HasFeature reports whether a feature flag is enabled for the tenant.
func (t Tenant) HasFeature(flag string) bool {
	for _, f := range t.Features {
		if f == flag {
			return true
		}
	}
	return false
}

// Settings holds per-tenant configuration. One row per tenant: the unique
// tenant_id turns a second insert into an integrity violation.
type Settings struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	TenantID      int64  `gorm:"column:tenant_id;not null;uniqueIndex:ux_tenant_settings_tenant" json:"tenant_id"`
	CurrencyCode  string `gorm:"type:text;not null;default:'USD'" json:"currency_code"`
	InvoicePrefix string `gorm:"type:text;not null;default:'INV'" json:"invoice_prefix"`
	// NextInvoiceSeq feeds invoice numbering; bumped in the issuing
	// transaction so row locking serializes concurrent issues.
	NextInvoiceSeq int64             `gorm:"not null;default:1" json:"next_invoice_seq"`
	Extra          datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Settings) TableName() string { return "tenant_settings" }

// ConnectorConfig is an external-connector configuration (payment gateway,
// accounting export, webhook endpoint). Audited like the other designated
// entity types.
type ConnectorConfig struct {
	ID        int64             `gorm:"primaryKey" json:"id"`
	TenantID  int64             `gorm:"column:tenant_id;not null;index" json:"tenant_id"`
	Provider  string            `gorm:"type:text;not null" json:"provider"`
	Enabled   bool              `gorm:"not null;default:false" json:"enabled"`
	Config    datatypes.JSONMap `gorm:"type:jsonb" json:"config,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ConnectorConfig) TableName() string { return "connector_configs" }

// AuditMaskedColumns names the columns audit capture must redact. Connector
// config payloads carry gateway credentials.
func (ConnectorConfig) AuditMaskedColumns() []string { return []string{"config"} }
