package repository

import (
	"context"
	"errors"

	"github.com/ledgerline/ledgerline/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).First(&c, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := db.WithContext(ctx).Order("created_at asc").Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
