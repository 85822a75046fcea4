package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	"github.com/ledgerline/ledgerline/internal/clock"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	"github.com/ledgerline/ledgerline/internal/tenant/domain"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	pkgdb "github.com/ledgerline/ledgerline/pkg/db"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Syslog syslogdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	syslog syslogdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("tenant.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		syslog: p.Syslog,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		return nil, domain.ErrInvalidPlan
	}

	now := s.clock.Now()
	tenant := domain.Tenant{
		ID:        s.genID.Generate().Int64(),
		Name:      name,
		Slug:      slug.Make(name),
		Plan:      plan,
		Status:    domain.StatusActive,
		Features:  datatypes.NewJSONSlice(req.Features),
		MaxUsers:  req.MaxUsers,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if tenant.MaxUsers <= 0 {
		tenant.MaxUsers = 5
	}
	if req.TrialDays > 0 {
		tenant.Status = domain.StatusTrial
		trialEnd := now.AddDate(0, 0, req.TrialDays)
		tenant.TrialEndsAt = &trialEnd
	}

	ctx = tenantctx.WithBypass(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &tenant); err != nil {
			return err
		}
		// Every tenant gets a settings row; the unique tenant_id makes a
		// second one an integrity violation.
		return tx.WithContext(ctx).Create(&domain.Settings{
			ID:             s.genID.Generate().Int64(),
			TenantID:       tenant.ID,
			CurrencyCode:   "USD",
			InvoicePrefix:  "INV",
			NextInvoiceSeq: 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}).Error
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	return &tenant, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Tenant, error) {
	tenant, err := s.repo.FindByID(tenantctx.WithBypass(ctx), s.db, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Tenant, error) {
	return s.repo.FindAll(tenantctx.WithBypass(ctx), s.db)
}

func (s *Service) Suspend(ctx context.Context, id int64) (*domain.Tenant, error) {
	return s.setStatus(ctx, id, domain.StatusSuspended)
}

func (s *Service) Activate(ctx context.Context, id int64) (*domain.Tenant, error) {
	return s.setStatus(ctx, id, domain.StatusActive)
}

func (s *Service) setStatus(ctx context.Context, id int64, status domain.Status) (*domain.Tenant, error) {
	ctx = tenantctx.WithBypass(ctx)
	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.repo.UpdateStatus(ctx, s.db, id, status); err != nil {
		return nil, err
	}
	tenant.Status = status
	return tenant, nil
}

// Delete removes a tenant and everything it owns in one transaction. Child
// tables go first; deletes on audited tables still emit their final audit
// entries, and the audit purge below sweeps those out with the rest. The
// tenant-independent system log is deliberately left alone.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx = tenantctx.WithBypass(ctx)

	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if tenant == nil {
		return domain.ErrNotFound
	}

	owned := []any{
		&notificationdomain.Notification{},
		&inventorydomain.StockMovement{},
		&invoicedomain.LineItem{},
		&invoicedomain.Invoice{},
		&customerdomain.Customer{},
		&productdomain.Product{},
		&userdomain.User{},
		&domain.ConnectorConfig{},
		&domain.Settings{},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range owned {
			if err := tx.WithContext(ctx).Where("tenant_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).Where("tenant_id = ?", id).Delete(&auditdomain.Entry{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Delete(&domain.Tenant{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("tenant deleted", zap.Int64("tenant_id", id), zap.String("slug", tenant.Slug))
	// The tenant's own audit trail just went with it; the removal itself is
	// recorded in the tenant-independent system log. Write reports its own
	// failures.
	_ = s.syslog.Write(ctx, syslogdomain.LevelWarn, "tenant deleted", map[string]any{
		"tenant_id": id,
		"slug":      tenant.Slug,
	})
	return nil
}

func (s *Service) GetSettings(ctx context.Context) (*domain.Settings, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}

	var settings domain.Settings
	err := s.db.WithContext(ctx).First(&settings, "tenant_id = ?", tenantID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.UpdateSettingsRequest) (*domain.Settings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if code := strings.ToUpper(strings.TrimSpace(req.CurrencyCode)); code != "" {
		updates["currency_code"] = code
	}
	if prefix := strings.TrimSpace(req.InvoicePrefix); prefix != "" {
		updates["invoice_prefix"] = prefix
	}
	if req.Extra != nil {
		updates["extra"] = datatypes.JSONMap(req.Extra)
	}

	err = s.db.WithContext(ctx).Model(&domain.Settings{}).
		Where("id = ?", settings.ID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.GetSettings(ctx)
}

func (s *Service) ListConnectors(ctx context.Context) ([]domain.ConnectorConfig, error) {
	var configs []domain.ConnectorConfig
	err := s.db.WithContext(ctx).Order("provider asc").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *Service) UpsertConnector(ctx context.Context, req domain.ConnectorRequest) (*domain.ConnectorConfig, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return nil, domain.ErrInvalidProvider
	}

	now := s.clock.Now()
	if req.ID != 0 {
		var existing domain.ConnectorConfig
		err := s.db.WithContext(ctx).First(&existing, "id = ?", req.ID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, domain.ErrNotFound
			}
			return nil, err
		}
		err = s.db.WithContext(ctx).Model(&domain.ConnectorConfig{}).
			Where("id = ?", req.ID).
			Updates(map[string]any{
				"provider":   provider,
				"enabled":    req.Enabled,
				"config":     datatypes.JSONMap(req.Config),
				"updated_at": now,
			}).Error
		if err != nil {
			return nil, err
		}
		existing.Provider = provider
		existing.Enabled = req.Enabled
		existing.Config = datatypes.JSONMap(req.Config)
		existing.UpdatedAt = now
		return &existing, nil
	}

	created := domain.ConnectorConfig{
		ID:        s.genID.Generate().Int64(),
		TenantID:  tenantID,
		Provider:  provider,
		Enabled:   req.Enabled,
		Config:    datatypes.JSONMap(req.Config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}
