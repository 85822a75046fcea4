// Package identity models the resolved caller: user, tenant membership and
// role. Everything downstream of the transport consumes this resolved triple;
// credential verification happens only at login.
package identity

import (
	"fmt"
	"strings"
)

// Role is a coarse permission tier. The set is closed: role checks are exact
// membership against an enumerated set, there is no implicit hierarchy. A
// handler that wants admin-or-manager says so explicitly.
type Role string

const (
	RoleStaff      Role = "staff"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleStaff, RoleManager, RoleAdmin, RoleSuperadmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager, RoleAdmin, RoleSuperadmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
