// Package seed bootstraps the platform superadmin, and optionally a demo
// tenant, on startup so a fresh install is operable without manual database
// surgery.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	"github.com/ledgerline/ledgerline/internal/identity"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	"github.com/ledgerline/ledgerline/internal/user/password"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultSuperadminEmail    = "admin@ledgerline.local"
	defaultSuperadminPassword = "admin"
	defaultSuperadminName     = "Platform Admin"

	demoTenantSlug    = "demo-coffee"
	demoAdminEmail    = "demo@ledgerline.local"
	demoAdminPassword = "demo-password"
)

// EnsureSuperadmin creates the tenantless superadmin user when none exists.
// Existing superadmins are left alone, credentials included.
func EnsureSuperadmin(db *gorm.DB, email, plaintext string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = defaultSuperadminEmail
	}
	if plaintext == "" {
		plaintext = defaultSuperadminPassword
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := tenantctx.WithBypass(context.Background())
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.WithContext(ctx).Model(&userdomain.User{}).
			Where("role = ?", identity.RoleSuperadmin).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		hash, err := password.Hash(plaintext)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		return tx.WithContext(ctx).Create(&userdomain.User{
			ID:           node.Generate().Int64(),
			Email:        email,
			Name:         defaultSuperadminName,
			PasswordHash: hash,
			Role:         identity.RoleSuperadmin,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).Error
	})
}

// EnsureDemoTenant provisions a small demo dataset (tenant, admin user,
// customer, products) for local evaluation. It is a no-op when the demo
// tenant already exists.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := tenantctx.WithBypass(context.Background())
	var count int64
	err = db.WithContext(ctx).Model(&tenantdomain.Tenant{}).
		Where("slug = ?", demoTenantSlug).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := password.Hash(demoAdminPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tenant := tenantdomain.Tenant{
		ID:        node.Generate().Int64(),
		Name:      "Demo Coffee",
		Slug:      demoTenantSlug,
		Plan:      "starter",
		Status:    tenantdomain.StatusActive,
		MaxUsers:  5,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&tenant).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&tenantdomain.Settings{
			ID:             node.Generate().Int64(),
			TenantID:       tenant.ID,
			CurrencyCode:   "USD",
			InvoicePrefix:  "INV",
			NextInvoiceSeq: 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&userdomain.User{
			ID:           node.Generate().Int64(),
			TenantID:     &tenant.ID,
			Email:        demoAdminEmail,
			Name:         "Demo Admin",
			PasswordHash: hash,
			Role:         identity.RoleAdmin,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&customerdomain.Customer{
			ID:        node.Generate().Int64(),
			TenantID:  tenant.ID,
			Name:      "Walk-in Customer",
			CreatedAt: now,
			UpdatedAt: now,
		}).Error; err != nil {
			return err
		}
		reorderPoint := int64(10)
		products := []productdomain.Product{
			{
				ID:           node.Generate().Int64(),
				TenantID:     tenant.ID,
				SKU:          "BEAN-1KG",
				Name:         "House Blend Beans 1kg",
				UnitPrice:    decimal.NewFromFloat(18.50),
				ReorderPoint: &reorderPoint,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			},
			{
				ID:        node.Generate().Int64(),
				TenantID:  tenant.ID,
				SKU:       "CUP-12OZ",
				Name:      "Paper Cup 12oz (sleeve of 50)",
				UnitPrice: decimal.NewFromFloat(4.25),
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		return tx.WithContext(ctx).Create(&products).Error
	})
}
