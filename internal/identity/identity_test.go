package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasRoleIsExactMembership(t *testing.T) {
	admin := Identity{UserID: 1, Role: RoleAdmin}

	assert.True(t, admin.HasRole(RoleAdmin))
	assert.True(t, admin.HasRole(RoleManager, RoleAdmin))
	// No implicit hierarchy: admin does not satisfy a manager-only check.
	assert.False(t, admin.HasRole(RoleManager))
	assert.False(t, admin.HasRole())
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Manager ")
	require.NoError(t, err)
	assert.Equal(t, RoleManager, role)

	_, err = ParseRole("owner")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	tenantID := int64(77)
	id := Identity{UserID: 12, TenantID: &tenantID, Role: RoleManager}

	raw, err := codec.Issue(id, time.Now())
	require.NoError(t, err)

	parsed, err := codec.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, parsed.UserID)
	assert.Equal(t, id.Role, parsed.Role)
	require.NotNil(t, parsed.TenantID)
	assert.Equal(t, tenantID, *parsed.TenantID)
}

func TestSuperadminTokenHasNoTenant(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	raw, err := codec.Issue(Identity{UserID: 1, Role: RoleSuperadmin}, time.Now())
	require.NoError(t, err)

	parsed, err := codec.Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, parsed.TenantID)
	assert.True(t, parsed.IsSuperadmin())
}

func TestTenantlessNonSuperadminRejected(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)

	raw, err := codec.Issue(Identity{UserID: 2, Role: RoleStaff}, time.Now())
	require.NoError(t, err)

	_, err = codec.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Hour)
	tenantID := int64(1)

	raw, err := codec.Issue(Identity{UserID: 3, TenantID: &tenantID, Role: RoleStaff}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = codec.Parse(raw)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestWrongSecretRejected(t *testing.T) {
	tenantID := int64(1)
	raw, err := NewTokenCodec("secret-a", time.Hour).
		Issue(Identity{UserID: 4, TenantID: &tenantID, Role: RoleStaff}, time.Now())
	require.NoError(t, err)

	_, err = NewTokenCodec("secret-b", time.Hour).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
