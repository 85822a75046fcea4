package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	EntityType string `form:"entity_type"`
	EntityID   string `form:"entity_id"`
	// StartAt and EndAt arrive as RFC 3339 query params; the handler
	// parses them.
	StartAt *time.Time `form:"-"`
	EndAt   *time.Time `form:"-"`
}

type ListResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	// List returns the caller tenant's entries, newest first.
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// ListAll is the superadmin-only cross-tenant listing. It runs on the
	// dedicated bypass path, never through the tenant-scoped one.
	ListAll(ctx context.Context, req ListRequest) (ListResponse, error)
}

type Repository interface {
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
