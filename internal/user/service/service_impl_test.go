package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/ledgerline/ledgerline/internal/identity"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	tenantrepo "github.com/ledgerline/ledgerline/internal/tenant/repository"
	"github.com/ledgerline/ledgerline/internal/user/domain"
	"github.com/ledgerline/ledgerline/internal/user/repository"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func setupUsers(t *testing.T) (domain.Service, *gorm.DB, *tenantdomain.Tenant) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tenantdomain.Tenant{}, &domain.User{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Params{
		DB:         db,
		Log:        zaptest.NewLogger(t),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		TenantRepo: tenantrepo.Provide(),
	})

	tenant := &tenantdomain.Tenant{
		ID:       node.Generate().Int64(),
		Name:     "Shop",
		Slug:     "shop",
		Plan:     "starter",
		Status:   tenantdomain.StatusActive,
		MaxUsers: 2,
	}
	require.NoError(t, db.Create(tenant).Error)
	return svc, db, tenant
}

func userCtx(tenantID int64) context.Context {
	return tenantctx.WithTenantID(context.Background(), tenantID)
}

func TestCreateNormalizesEmail(t *testing.T) {
	svc, _, tenant := setupUsers(t)

	user, err := svc.Create(userCtx(tenant.ID), domain.CreateRequest{
		Email:    "  Alice@Example.COM ",
		Name:     "Alice",
		Password: "correct-horse",
		Role:     "staff",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, identity.RoleStaff, user.Role)
	assert.True(t, user.Active)
	require.NotNil(t, user.TenantID)
	assert.Equal(t, tenant.ID, *user.TenantID)
	// The hash is stored, never the password.
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestCreateValidation(t *testing.T) {
	svc, _, tenant := setupUsers(t)
	ctx := userCtx(tenant.ID)

	_, err := svc.Create(ctx, domain.CreateRequest{Email: "no-at-sign", Password: "long-enough", Role: "staff"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Password: "short", Role: "staff"})
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)

	_, err = svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Password: "long-enough", Role: "superadmin"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.Create(ctx, domain.CreateRequest{Email: "a@b.com", Password: "long-enough", Role: "janitor"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.Create(context.Background(), domain.CreateRequest{Email: "a@b.com", Password: "long-enough", Role: "staff"})
	assert.ErrorIs(t, err, tenantctx.ErrNoTenant)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, _, tenant := setupUsers(t)
	ctx := userCtx(tenant.ID)

	_, err := svc.Create(ctx, domain.CreateRequest{Email: "alice@example.com", Password: "long-enough", Role: "staff"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Email: "ALICE@example.com", Password: "long-enough", Role: "staff"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreateEnforcesUserQuota(t *testing.T) {
	svc, _, tenant := setupUsers(t) // MaxUsers is 2
	ctx := userCtx(tenant.ID)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, domain.CreateRequest{
			Email: fmt.Sprintf("user%d@example.com", i), Password: "long-enough", Role: "staff",
		})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, domain.CreateRequest{Email: "extra@example.com", Password: "long-enough", Role: "staff"})
	assert.ErrorIs(t, err, domain.ErrUserQuotaExceeded)
}

func TestVerifyCredentials(t *testing.T) {
	svc, _, tenant := setupUsers(t)
	ctx := userCtx(tenant.ID)
	user, err := svc.Create(ctx, domain.CreateRequest{
		Email: "alice@example.com", Password: "correct-horse", Role: "admin",
	})
	require.NoError(t, err)

	verified, err := svc.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	_, err = svc.VerifyCredentials(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.VerifyCredentials(context.Background(), "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestVerifyCredentialsInactiveUser(t *testing.T) {
	svc, db, tenant := setupUsers(t)
	_, err := svc.Create(userCtx(tenant.ID), domain.CreateRequest{
		Email: "alice@example.com", Password: "correct-horse", Role: "staff",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&domain.User{}).
		Where("email = ?", "alice@example.com").
		Update("active", false).Error)

	_, err = svc.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestVerifyCredentialsSuspendedTenant(t *testing.T) {
	svc, db, tenant := setupUsers(t)
	_, err := svc.Create(userCtx(tenant.ID), domain.CreateRequest{
		Email: "alice@example.com", Password: "correct-horse", Role: "staff",
	})
	require.NoError(t, err)

	for _, status := range []tenantdomain.Status{tenantdomain.StatusSuspended, tenantdomain.StatusExpired} {
		require.NoError(t, db.Model(&tenantdomain.Tenant{}).
			Where("id = ?", tenant.ID).
			Update("status", status).Error)
		_, err = svc.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse")
		assert.ErrorIs(t, err, domain.ErrTenantSuspended, string(status))
	}
}
