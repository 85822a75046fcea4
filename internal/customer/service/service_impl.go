package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/customer/domain"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Customer, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate().Int64(),
		TenantID:  tenantID,
		Name:      name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.FindAll(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Customer, error) {
	customer, err := s.Get(ctx, req.ID)
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
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}

	err = s.db.WithContext(ctx).Model(&domain.Customer{}).
		Where("id = ?", customer.ID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.ID)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&domain.Customer{}, "id = ?", customer.ID).Error
}
