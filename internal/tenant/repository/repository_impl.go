package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenant *domain.Tenant) error {
	return db.WithContext(ctx).Create(tenant).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Tenant, error) {
	var t domain.Tenant
	err := db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB) ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	err := db.WithContext(ctx).Order("created_at asc").Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status domain.Status) error {
	return db.WithContext(ctx).Model(&domain.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}
