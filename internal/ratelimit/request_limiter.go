package ratelimit

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyTenantRequests = "ratelimit:tenant:%d"

// RequestLimiter throttles API requests per tenant. A nil limiter (no Redis
// configured or rate of 0) disables throttling.
type RequestLimiter struct {
	bucket *TokenBucket
	locker *Locker
	rate   float64
	burst  int
}

func NewRequestLimiter(cfg config.Config) *RequestLimiter {
	if cfg.RedisAddr == "" || cfg.RateLimitRate <= 0 {
		return nil
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &RequestLimiter{
		bucket: NewTokenBucket(client),
		locker: NewLocker(client),
		rate:   cfg.RateLimitRate,
		burst:  burst,
	}
}

func (r *RequestLimiter) Enabled() bool {
	return r != nil && r.bucket != nil
}

func (r *RequestLimiter) AllowTenant(ctx context.Context, tenantID int64) (*Result, error) {
	if !r.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return r.bucket.Allow(ctx, fmt.Sprintf(keyTenantRequests, tenantID), r.rate, r.burst)
}

// Locker exposes the shared Redis lock, nil when throttling is disabled.
func (r *RequestLimiter) Locker() *Locker {
	if r == nil {
		return nil
	}
	return r.locker
}
