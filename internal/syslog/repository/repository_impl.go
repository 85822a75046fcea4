package repository

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/syslog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.Entry, error) {
	var entries []domain.Entry
	stmt := db.WithContext(ctx).Model(&domain.Entry{})
	if req.Level != "" {
		stmt = stmt.Where("level = ?", req.Level)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
