// Package authz is the authorization gate evaluated before every
// tenant-scoped or audited operation. It is a pure precondition check: it
// never mutates state, and passing it does not exempt an operation from
// tenant scoping.
package authz

import (
	"fmt"
	"strings"

	"github.com/ledgerline/ledgerline/internal/identity"
)

// InsufficientRoleError carries the required and actual roles so the denial
// can be displayed without leaking anything else.
type InsufficientRoleError struct {
	Required []identity.Role
	Actual   identity.Role
}

func (e *InsufficientRoleError) Error() string {
	names := make([]string, 0, len(e.Required))
	for _, r := range e.Required {
		names = append(names, string(r))
	}
	return fmt.Sprintf("insufficient_role: requires %s, has %s", strings.Join(names, "|"), e.Actual)
}

// Authorize allows or denies an operation for the given identity. A nil
// identity (none resolved) denies with ErrUnauthenticated; a role outside the
// required set denies with *InsufficientRoleError. An empty required set only
// demands authentication.
func Authorize(id *identity.Identity, required ...identity.Role) error {
	if id == nil || id.UserID == 0 {
		return identity.ErrUnauthenticated
	}
	if len(required) == 0 {
		return nil
	}
	if !id.HasRole(required...) {
		return &InsufficientRoleError{Required: required, Actual: id.Role}
	}
	return nil
}
