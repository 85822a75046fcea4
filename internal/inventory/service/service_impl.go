package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/identity"
	"github.com/ledgerline/ledgerline/internal/inventory/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Products      productdomain.Repository
	Notifications notificationdomain.Service
	AlertConfig   *config.AlertConfigHolder
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	products      productdomain.Repository
	notifications notificationdomain.Service
	alertCfg      *config.AlertConfigHolder
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("inventory.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		products:      p.Products,
		notifications: p.Notifications,
		alertCfg:      p.AlertConfig,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.StockMovement, error) {
	var postings []domain.Posting
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		postings, err = s.Post(ctx, tx, []domain.RecordRequest{req})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.AlertLowStock(ctx, postings)
	return &postings[0].Movement, nil
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, reqs []domain.RecordRequest) ([]domain.Posting, error) {
	postings := make([]domain.Posting, 0, len(reqs))
	for _, req := range reqs {
		posting, err := s.apply(ctx, tx, req)
		if err != nil {
			return nil, err
		}
		postings = append(postings, *posting)
	}
	return postings, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) (*domain.Posting, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if req.Quantity == 0 {
		return nil, domain.ErrZeroQuantity
	}
	switch req.Type {
	case domain.MovementSale:
		if req.Quantity > 0 {
			return nil, domain.ErrInvalidQuantity
		}
	case domain.MovementPurchase:
		if req.Quantity < 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	product, err := s.products.FindByID(ctx, tx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	movement := domain.StockMovement{
		ID:        s.genID.Generate().Int64(),
		TenantID:  product.TenantID,
		ProductID: product.ID,
		Type:      req.Type,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		Note:      req.Note,
		CreatedAt: s.clock.Now(),
	}
	if req.Reference != nil {
		movement.ReferenceType = &req.Reference.Type
		movement.ReferenceID = &req.Reference.ID
	}
	if id, ok := identity.FromContext(ctx); ok {
		movement.UserID = &id.UserID
	}

	if err := s.repo.Insert(ctx, tx, &movement); err != nil {
		return nil, err
	}

	newStock, err := s.repo.SumQuantity(ctx, tx, product.ID)
	if err != nil {
		return nil, err
	}
	err = tx.Model(&productdomain.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"stock_quantity": newStock,
			"updated_at":     s.clock.Now(),
		}).Error
	if err != nil {
		return nil, err
	}

	return &domain.Posting{
		Movement: movement,
		Product:  *product,
		OldStock: product.StockQuantity,
		NewStock: newStock,
	}, nil
}

func (s *Service) Reconcile(ctx context.Context, productID int64) (int64, error) {
	var reconciled int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.products.FindByID(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrProductNotFound
		}
		reconciled, err = s.repo.SumQuantity(ctx, tx, product.ID)
		if err != nil {
			return err
		}
		if reconciled == product.StockQuantity {
			return nil
		}
		s.log.Info("stock cache drift repaired",
			zap.Int64("product_id", product.ID),
			zap.Int64("cached", product.StockQuantity),
			zap.Int64("ledger", reconciled),
		)
		return tx.Model(&productdomain.Product{}).
			Where("id = ?", product.ID).
			Updates(map[string]any{
				"stock_quantity": reconciled,
				"updated_at":     s.clock.Now(),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return reconciled, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.StockMovement, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	if req.Limit > 500 {
		req.Limit = 500
	}
	return s.repo.List(ctx, s.db, req)
}

// AlertLowStock emits a broadcast warning for each posting whose stock fell
// to or below the product's reorder point. Only the downward crossing
// notifies, so a product sitting below the threshold does not alert on every
// sale.
func (s *Service) AlertLowStock(ctx context.Context, postings []domain.Posting) {
	defaultReorderPoint := s.alertCfg.Get().DefaultReorderPoint
	for _, posting := range postings {
		reorderPoint := defaultReorderPoint
		if posting.Product.ReorderPoint != nil {
			reorderPoint = *posting.Product.ReorderPoint
		}
		if reorderPoint <= 0 {
			continue
		}
		if posting.NewStock > reorderPoint || posting.OldStock <= reorderPoint {
			continue
		}

		productID := strconv.FormatInt(posting.Product.ID, 10)
		_, err := s.notifications.Notify(ctx, notificationdomain.NotifyRequest{
			Type:     notificationdomain.TypeWarning,
			Category: notificationdomain.CategoryInventory,
			Priority: notificationdomain.PriorityHigh,
			Title:    "Low stock",
			Message: fmt.Sprintf("%s (%s) is down to %d units, at or below the reorder point of %d",
				posting.Product.Name, posting.Product.SKU, posting.NewStock, reorderPoint),
			Entity: &notificationdomain.EntityRef{Type: "product", ID: productID},
		})
		if err != nil {
			s.log.Warn("low stock notification failed",
				zap.Int64("product_id", posting.Product.ID),
				zap.Error(err),
			)
		}
	}
}
