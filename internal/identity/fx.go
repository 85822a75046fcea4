package identity

import (
	"errors"
	"time"

	"github.com/ledgerline/ledgerline/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(ProvideTokenCodec),
)

func ProvideTokenCodec(cfg config.Config) (*TokenCodec, error) {
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	ttl := time.Duration(cfg.AuthTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return NewTokenCodec(cfg.AuthJWTSecret, ttl), nil
}
