package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/product/domain"
	pkgdb "github.com/ledgerline/ledgerline/pkg/db"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.UnitPrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:           s.genID.Generate().Int64(),
		TenantID:     tenantID,
		SKU:          sku,
		Name:         name,
		Description:  req.Description,
		UnitPrice:    req.UnitPrice,
		ReorderPoint: req.ReorderPoint,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &product); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUTaken
		}
		return nil, err
	}
	return &product, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.FindAll(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Product, error) {
	product, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		updates["unit_price"] = *req.UnitPrice
	}
	if req.ReorderPoint != nil {
		updates["reorder_point"] = *req.ReorderPoint
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	err = s.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", product.ID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&domain.Product{}, "id = ?", product.ID).Error
}
