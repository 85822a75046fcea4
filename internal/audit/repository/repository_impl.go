package repository

import (
	"context"
	"strings"

	"github.com/ledgerline/ledgerline/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	stmt := db.WithContext(ctx).Model(&domain.Entry{})

	if action := strings.TrimSpace(string(filter.Action)); action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if entityType := strings.TrimSpace(filter.EntityType); entityType != "" {
		stmt = stmt.Where("entity_type = ?", entityType)
	}
	if entityID := strings.TrimSpace(filter.EntityID); entityID != "" {
		stmt = stmt.Where("entity_id = ?", entityID)
	}
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
