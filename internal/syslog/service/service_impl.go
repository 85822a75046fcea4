package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/ledgerline/internal/syslog/domain"
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
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("syslog.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Write(ctx context.Context, level domain.Level, message string, metadata map[string]any) error {
	if !level.Valid() {
		return domain.ErrInvalidLevel
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.ErrInvalidMessage
	}

	entry := domain.Entry{
		ID:        s.genID.Generate(),
		Level:     level,
		Message:   message,
		Metadata:  datatypes.JSONMap(metadata),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write system log", zap.String("message", message), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Entry, error) {
	if req.Level != "" && !req.Level.Valid() {
		return nil, domain.ErrInvalidLevel
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}
	if req.Limit > 500 {
		req.Limit = 500
	}
	return s.repo.List(ctx, s.db, req)
}
