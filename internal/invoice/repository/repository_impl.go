package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_items.id asc")
		}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if req.Status != nil {
		stmt = stmt.Where("status = ?", *req.Status)
	}
	if req.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *req.CustomerID)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}
	if err := stmt.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) FindIssuedDueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusIssued).
		Where("due_date IS NOT NULL AND due_date < ?", cutoff).
		Order("due_date asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
