package repository

import (
	"context"
	"errors"

	"github.com/ledgerline/ledgerline/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Notification, error) {
	var notifications []domain.Notification
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Notification{}), filter)

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

	if err := stmt.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, filter domain.ListFilter) (int64, error) {
	filter.Unread = nil
	var count int64
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Notification{}), filter).
		Where("read = ?", false)
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.UserID != nil {
		// Personal notifications plus tenant-wide broadcasts.
		stmt = stmt.Where("(user_id = ? OR user_id IS NULL)", *filter.UserID)
	}
	if filter.Unread != nil {
		stmt = stmt.Where("read = ?", !*filter.Unread)
	}
	if filter.Type != nil {
		stmt = stmt.Where("type = ?", *filter.Type)
	}
	if filter.Category != nil {
		stmt = stmt.Where("category = ?", *filter.Category)
	}
	if filter.Priority != nil {
		stmt = stmt.Where("priority = ?", *filter.Priority)
	}
	if !filter.IncludeExpired {
		stmt = stmt.Where("(expires_at IS NULL OR expires_at > ?)", filter.Now)
	}
	return stmt
}
