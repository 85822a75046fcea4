package identity

// Identity is the resolved caller of a request.
type Identity struct {
	UserID int64
	// TenantID is nil only for superadmin identities, which operate outside
	// any tenant partition.
	TenantID *int64
	Role     Role
}

// HasRole reports whether the identity's role is a member of the accepted
// set. Membership is exact: RoleAdmin does not satisfy a manager-only check
// unless the caller enumerates both.
func (id Identity) HasRole(required ...Role) bool {
	for _, role := range required {
		if id.Role == role {
			return true
		}
	}
	return false
}

// IsSuperadmin reports whether the identity is tenant-exempt.
func (id Identity) IsSuperadmin() bool {
	return id.Role == RoleSuperadmin
}
