// Package domain contains the audit trail model. Entries are append-only:
// nothing in the application updates or deletes them, except the cascade that
// removes a whole tenant.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Action is the mutation kind an entry records.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Entry is one recorded mutation. OldValues is absent on INSERT, NewValues
// absent on DELETE; UPDATE carries the full before and after row state, not a
// field diff. TenantID is nil for system-level actions; UserID is nulled when
// the acting user is deleted, preserving the log.
type Entry struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID   *int64            `gorm:"column:tenant_id;index" json:"tenant_id,omitempty"`
	UserID     *int64            `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Action     Action            `gorm:"type:text;not null" json:"action"`
	EntityType string            `gorm:"type:text;not null;index:ix_audit_entity,priority:1" json:"entity_type"`
	EntityID   string            `gorm:"type:text;not null;index:ix_audit_entity,priority:2" json:"entity_id"`
	OldValues  datatypes.JSONMap `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues  datatypes.JSONMap `gorm:"type:jsonb" json:"new_values,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "audit_log_entries" }

// Cursor positions a page in the entry stream, newest first.
type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows an entry listing. TenantID is applied by the tenant
// guard for tenant-scoped callers; superadmin listings bypass it.
type ListFilter struct {
	Action     Action
	EntityType string
	EntityID   string
	UserID     *int64
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *Cursor
	Limit      int
}
