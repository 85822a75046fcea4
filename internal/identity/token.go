package identity

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrTokenExpired = errors.New("token_expired")
)

// Claims is the JWT payload carried by bearer tokens. The tenant claim is
// empty for superadmin tokens.
type Claims struct {
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and parses bearer tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the identity.
func (c *TokenCodec) Issue(id Identity, now time.Time) (string, error) {
	claims := Claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if id.TenantID != nil {
		claims.TenantID = strconv.FormatInt(*id.TenantID, 10)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Parse validates a bearer token and rebuilds the identity triple.
func (c *TokenCodec) Parse(raw string) (Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return Identity{}, ErrInvalidToken
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UserID: userID, Role: role}
	if claims.TenantID != "" {
		tenantID, err := strconv.ParseInt(claims.TenantID, 10, 64)
		if err != nil || tenantID == 0 {
			return Identity{}, ErrInvalidToken
		}
		id.TenantID = &tenantID
	}

	// Superadmin is the only role allowed to float outside a tenant.
	if id.TenantID == nil && role != RoleSuperadmin {
		return Identity{}, ErrInvalidToken
	}

	return id, nil
}
