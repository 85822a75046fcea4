package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/notification/domain"
	"github.com/ledgerline/ledgerline/pkg/db/pagination"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
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
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Notify(ctx context.Context, req domain.NotifyRequest) (*domain.Notification, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, tenantctx.ErrNoTenant
	}
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if !req.Category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, domain.ErrInvalidPriority
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	n := domain.Notification{
		ID:        s.genID.Generate().Int64(),
		TenantID:  tenantID,
		UserID:    req.UserID,
		Type:      req.Type,
		Category:  req.Category,
		Priority:  priority,
		Title:     title,
		Message:   req.Message,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: s.clock.Now(),
	}
	if req.Entity != nil {
		n.EntityType = &req.Entity.Type
		n.EntityID = &req.Entity.ID
	}

	if err := s.repo.Insert(ctx, s.db, &n); err != nil {
		return nil, err
	}

	s.log.Info("notification emitted",
		zap.Int64("notification_id", n.ID),
		zap.Int64("tenant_id", tenantID),
		zap.String("category", string(n.Category)),
		zap.Bool("broadcast", n.UserID == nil),
	)
	return &n, nil
}

// Get returns a notification by id even when it has expired.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	var cursor *domain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		id, err := strconv.ParseInt(strings.TrimSpace(decoded.ID), 10, 64)
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}
	if req.Type != nil && !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if req.Category != nil && !req.Category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, domain.ErrInvalidPriority
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := domain.ListFilter{
		UserID:         req.UserID,
		Unread:         req.Unread,
		Type:           req.Type,
		Category:       req.Category,
		Priority:       req.Priority,
		IncludeExpired: req.IncludeExpired,
		Now:            s.clock.Now(),
		Cursor:         cursor,
		Limit:          limit,
	}

	notifications, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	refs := make([]*domain.Notification, len(notifications))
	for i := range notifications {
		refs[i] = &notifications[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, limit, func(n *domain.Notification) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        strconv.FormatInt(n.ID, 10),
			CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(notifications) > limit {
		notifications = notifications[:limit]
	}
	return &domain.ListResponse{
		Data:        notifications,
		UnreadCount: unread,
		PageInfo:    *pageInfo,
	}, nil
}

// MarkAsRead is idempotent: a second call leaves read_at untouched.
func (s *Service) MarkAsRead(ctx context.Context, id int64) (*domain.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND read = ?", n.ID, false).
		Updates(map[string]any{"read": true, "read_at": now}).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}
