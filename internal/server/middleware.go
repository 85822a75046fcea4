package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerline/ledgerline/internal/authz"
	"github.com/ledgerline/ledgerline/internal/identity"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	headerRateReset = "Retry-After"
)

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		)
	}
}

// RequestID propagates the inbound request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// AuthRequired resolves the bearer token into an identity and stamps the
// request context with it. Non-superadmin identities also get their tenant id
// stamped, which is what the tenant guard keys on; the tenant is never taken
// from a client-supplied payload field.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, identity.ErrUnauthenticated)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, identity.ErrInvalidToken)
			return
		}

		id, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := identity.WithIdentity(c.Request.Context(), id)
		if id.TenantID != nil {
			ctx = tenantctx.WithTenantID(ctx, *id.TenantID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates the route on exact role membership. With no roles it
// only demands an authenticated identity.
func (s *Server) RequireRole(required ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, identity.ErrUnauthenticated)
			return
		}
		if err := authz.Authorize(&id, required...); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// TenantRateLimit throttles tenant-scoped traffic through the shared Redis
// token bucket. A nil limiter leaves the chain untouched.
func (s *Server) TenantRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		tenantID, ok := tenantctx.TenantID(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		res, err := s.limiter.AllowTenant(c.Request.Context(), tenantID)
		if err != nil {
			// Redis being down never blocks traffic.
			c.Next()
			return
		}
		if !res.Allowed {
			seconds := int(res.RetryAfter / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header(headerRateReset, strconv.Itoa(seconds))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
