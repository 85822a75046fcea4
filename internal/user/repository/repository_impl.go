package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/ledgerline/ledgerline/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).Order("created_at asc").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) CountByTenant(ctx context.Context, db *gorm.DB, tenantID int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.User{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
