// Package domain contains the platform-level operational log. System log
// entries are tenant-independent and survive tenant removal.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

func (l Level) Valid() bool {
	switch l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return true
	default:
		return false
	}
}

type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Level     Level             `gorm:"type:text;not null;index" json:"level"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "system_log_entries" }

type ListRequest struct {
	Level Level `form:"level"`
	Limit int   `form:"limit"`
}

type Service interface {
	Write(ctx context.Context, level Level, message string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]Entry, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]Entry, error)
}

var (
	ErrInvalidLevel   = errors.New("invalid_level")
	ErrInvalidMessage = errors.New("invalid_message")
)
