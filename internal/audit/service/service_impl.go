package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	"github.com/ledgerline/ledgerline/pkg/db/pagination"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo auditdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("audit.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if _, ok := tenantctx.TenantID(ctx); !ok {
		return auditdomain.ListResponse{}, tenantctx.ErrNoTenant
	}
	return s.list(ctx, req)
}

func (s *Service) ListAll(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	return s.list(tenantctx.WithBypass(ctx), req)
}

func (s *Service) list(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	action := auditdomain.Action(strings.ToUpper(strings.TrimSpace(req.Action)))
	switch action {
	case "", auditdomain.ActionInsert, auditdomain.ActionUpdate, auditdomain.ActionDelete:
	default:
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidAction
	}

	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]auditdomain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	return auditdomain.ListResponse{PageInfo: *pageInfo, Entries: entries}, nil
}
