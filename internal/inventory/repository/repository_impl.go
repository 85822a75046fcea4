package repository

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/inventory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, movement *domain.StockMovement) error {
	return db.WithContext(ctx).Create(movement).Error
}

func (r *repo) SumQuantity(ctx context.Context, db *gorm.DB, productID int64) (int64, error) {
	var sum int64
	err := db.WithContext(ctx).Model(&domain.StockMovement{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.StockMovement, error) {
	var movements []domain.StockMovement
	stmt := db.WithContext(ctx).Model(&domain.StockMovement{})
	if req.ProductID != nil {
		stmt = stmt.Where("product_id = ?", *req.ProductID)
	}
	if req.Type != nil {
		stmt = stmt.Where("type = ?", *req.Type)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if req.Limit > 0 {
		stmt = stmt.Limit(req.Limit)
	}
	if err := stmt.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
