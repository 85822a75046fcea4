// Package scheduler runs the periodic background jobs: flagging overdue
// invoices, warning about expiring trials, and expiring trials that have run
// out. Jobs iterate tenants under a bypass context and then re-enter the
// tenant-scoped code path with that tenant's id, so the tenant guard applies
// to everything a job touches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	"github.com/ledgerline/ledgerline/internal/ratelimit"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

const schedulerLockKey = "scheduler:run"

// Config controls the scheduler loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	if cfg.SchedulerInterval > 0 {
		out.RunInterval = time.Duration(cfg.SchedulerInterval) * time.Second
	}
	return out
}

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Tenants         tenantdomain.Repository
	InvoiceSvc      invoicedomain.Service
	NotificationSvc notificationdomain.Service
	SyslogSvc       syslogdomain.Service
	AlertConfig     *config.AlertConfigHolder
	Limiter         *ratelimit.RequestLimiter `optional:"true"`
	Config          Config                    `optional:"true"`
}

type Scheduler struct {
	db              *gorm.DB
	log             *zap.Logger
	cfg             Config
	clock           clock.Clock
	tenants         tenantdomain.Repository
	invoiceSvc      invoicedomain.Service
	notificationSvc notificationdomain.Service
	syslogSvc       syslogdomain.Service
	alertCfg        *config.AlertConfigHolder
	locker          *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Tenants == nil || p.InvoiceSvc == nil || p.NotificationSvc == nil || p.SyslogSvc == nil || p.AlertConfig == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:              p.DB,
		log:             p.Log.Named("scheduler"),
		cfg:             p.Config.withDefaults(),
		clock:           p.Clock,
		tenants:         p.Tenants,
		invoiceSvc:      p.InvoiceSvc,
		notificationSvc: p.NotificationSvc,
		syslogSvc:       p.SyslogSvc,
		alertCfg:        p.AlertConfig,
		locker:          p.Limiter.Locker(),
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	// With Redis configured, only one instance runs a pass at a time.
	if s.locker != nil {
		lease, ok, err := s.locker.Acquire(ctx, schedulerLockKey, s.cfg.JobTimeout)
		if err != nil {
			s.log.Warn("scheduler lock unavailable", zap.Error(err))
		} else if !ok {
			return nil
		} else {
			defer func() {
				if err := lease.Release(ctx); err != nil {
					s.log.Warn("scheduler lock release failed", zap.Error(err))
				}
			}()
		}
	}

	tenants, err := s.tenants.FindAll(tenantctx.WithBypass(ctx), s.db)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	var firstErr error
	for i := range tenants {
		tenant := &tenants[i]
		if err := s.runTenantJobs(ctx, tenant); err != nil {
			s.log.Warn("tenant jobs failed",
				zap.Int64("tenant_id", tenant.ID),
				zap.Error(err),
			)
			_ = s.syslogSvc.Write(ctx, syslogdomain.LevelError, "tenant jobs failed", map[string]any{
				"tenant_id": tenant.ID,
				"error":     err.Error(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Scheduler) runTenantJobs(ctx context.Context, tenant *tenantdomain.Tenant) error {
	switch tenant.Status {
	case tenantdomain.StatusSuspended, tenantdomain.StatusExpired:
		return nil
	}

	tctx := tenantctx.WithTenantID(ctx, tenant.ID)

	flagged, err := s.invoiceSvc.ProcessOverdue(tctx)
	if err != nil {
		return fmt.Errorf("process overdue: %w", err)
	}
	if len(flagged) > 0 {
		s.log.Info("invoices flagged overdue",
			zap.Int64("tenant_id", tenant.ID),
			zap.Int("count", len(flagged)),
		)
		_ = s.syslogSvc.Write(ctx, syslogdomain.LevelInfo, "invoices flagged overdue", map[string]any{
			"tenant_id": tenant.ID,
			"count":     len(flagged),
		})
	}

	if tenant.Status == tenantdomain.StatusTrial {
		if err := s.handleTrial(tctx, tenant); err != nil {
			return fmt.Errorf("trial check: %w", err)
		}
	}
	return nil
}

// handleTrial expires a trial tenant past its end date, or warns its users
// once a day when the end date is inside the warning window.
func (s *Scheduler) handleTrial(ctx context.Context, tenant *tenantdomain.Tenant) error {
	if tenant.TrialEndsAt == nil {
		return nil
	}
	now := s.clock.Now()

	if now.After(*tenant.TrialEndsAt) {
		err := s.db.WithContext(tenantctx.WithBypass(ctx)).
			Model(&tenantdomain.Tenant{}).
			Where("id = ? AND status = ?", tenant.ID, tenantdomain.StatusTrial).
			Updates(map[string]any{
				"status":     tenantdomain.StatusExpired,
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		s.log.Info("trial expired", zap.Int64("tenant_id", tenant.ID))
		_ = s.syslogSvc.Write(ctx, syslogdomain.LevelInfo, "trial expired", map[string]any{
			"tenant_id": tenant.ID,
		})
		return nil
	}

	warnWindow := time.Duration(s.alertCfg.Get().TrialExpiryWarningDays) * 24 * time.Hour
	if warnWindow <= 0 || tenant.TrialEndsAt.Sub(now) > warnWindow {
		return nil
	}
	warned, err := s.warnedRecently(ctx, tenant.ID, now)
	if err != nil || warned {
		return err
	}

	_, err = s.notificationSvc.Notify(ctx, notificationdomain.NotifyRequest{
		Type:     notificationdomain.TypeWarning,
		Category: notificationdomain.CategorySystem,
		Priority: notificationdomain.PriorityHigh,
		Title:    "Trial ending soon",
		Message:  fmt.Sprintf("Your trial ends on %s", tenant.TrialEndsAt.Format("2006-01-02")),
		Entity: &notificationdomain.EntityRef{
			Type: "tenant",
			ID:   strconv.FormatInt(tenant.ID, 10),
		},
		ExpiresAt: tenant.TrialEndsAt,
	})
	return err
}

func (s *Scheduler) warnedRecently(ctx context.Context, tenantID int64, now time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&notificationdomain.Notification{}).
		Where("entity_type = ? AND entity_id = ?", "tenant", strconv.FormatInt(tenantID, 10)).
		Where("category = ?", notificationdomain.CategorySystem).
		Where("created_at > ?", now.Add(-24*time.Hour)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
