package authz

import (
	"errors"
	"testing"

	"github.com/ledgerline/ledgerline/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeUnresolvedIdentity(t *testing.T) {
	assert.ErrorIs(t, Authorize(nil, identity.RoleStaff), identity.ErrUnauthenticated)
	assert.ErrorIs(t, Authorize(&identity.Identity{}), identity.ErrUnauthenticated)
}

func TestAuthorizeEmptySetOnlyRequiresAuthentication(t *testing.T) {
	id := identity.Identity{UserID: 1, Role: identity.RoleStaff}
	assert.NoError(t, Authorize(&id))
}

func TestAuthorizeInsufficientRole(t *testing.T) {
	id := identity.Identity{UserID: 1, Role: identity.RoleAdmin}

	err := Authorize(&id, identity.RoleManager)
	var denied *InsufficientRoleError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, []identity.Role{identity.RoleManager}, denied.Required)
	assert.Equal(t, identity.RoleAdmin, denied.Actual)
}

func TestAuthorizeMemberOfSet(t *testing.T) {
	id := identity.Identity{UserID: 1, Role: identity.RoleManager}
	assert.NoError(t, Authorize(&id, identity.RoleManager, identity.RoleAdmin))
}
