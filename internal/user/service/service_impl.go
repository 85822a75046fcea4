package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/identity"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	"github.com/ledgerline/ledgerline/internal/user/domain"
	"github.com/ledgerline/ledgerline/internal/user/password"
	pkgdb "github.com/ledgerline/ledgerline/pkg/db"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	TenantRepo tenantdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	tenantRepo tenantdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("user.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		tenantRepo: p.TenantRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.User, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return nil, domain.ErrInvalidPassword
	}
	role, err := identity.ParseRole(req.Role)
	if err != nil || role == identity.RoleSuperadmin {
		// Superadmins are platform accounts, never created inside a tenant.
		return nil, domain.ErrInvalidRole
	}

	tenant, err := s.tenantRepo.FindByID(tenantctx.WithBypass(ctx), s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, tenantdomain.ErrNotFound
	}
	count, err := s.repo.CountByTenant(ctx, s.db, tenantID)
	if err != nil {
		return nil, err
	}
	if count >= int64(tenant.MaxUsers) {
		return nil, domain.ErrUserQuotaExceeded
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:           s.genID.Generate().Int64(),
		TenantID:     &tenantID,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.FindAll(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.User, error) {
	user, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		role, err := identity.ParseRole(*req.Role)
		if err != nil || role == identity.RoleSuperadmin {
			return nil, domain.ErrInvalidRole
		}
		updates["role"] = role
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	err = s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, req.ID)
}

// Delete removes the user row. Audit log entries the user produced keep
// their content; the database nulls their acting-user reference.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&domain.User{}, "id = ?", user.ID).Error
}

func (s *Service) VerifyCredentials(ctx context.Context, email, pw string) (*domain.User, error) {
	// Login has no resolved tenant yet; the lookup crosses partitions.
	ctx = tenantctx.WithBypass(ctx)

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(pw, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, domain.ErrUserInactive
	}
	if user.TenantID != nil {
		tenant, err := s.tenantRepo.FindByID(ctx, s.db, *user.TenantID)
		if err != nil {
			return nil, err
		}
		if tenant == nil || tenant.Status == tenantdomain.StatusSuspended || tenant.Status == tenantdomain.StatusExpired {
			return nil, domain.ErrTenantSuspended
		}
	}
	return user, nil
}
