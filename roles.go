package authgate

// RoleValidator is the permission-checking surface exposed by sessions and
// claims.
type RoleValidator interface {
	CanRead(resource string) bool
	CanEdit(resource string) bool
	CanCreate(resource string) bool
	CanDelete(resource string) bool
	HasRole(role string) bool
	IsAtLeast(minRole UserRole) bool
}

// roleRank orders roles for IsAtLeast checks. Unknown roles rank below guest.
func roleRank(r UserRole) int {
	switch r {
	case RoleGuest:
		return 0
	case RoleMember:
		return 1
	case RoleAdmin:
		return 2
	case RoleOwner:
		return 3
	default:
		return -1
	}
}

// IsValidRole checks the role against the deployment's role set.
func IsValidRole(r UserRole) bool {
	return roleRank(r) >= 0
}

// ParseRole safely parses a string into a UserRole.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}

// AllRoles returns the deployment's roles in hierarchical order.
func AllRoles() []UserRole {
	return []UserRole{RoleGuest, RoleMember, RoleAdmin, RoleOwner}
}

// RoleCanRead reports whether the role can read resources.
func RoleCanRead(r UserRole) bool {
	return roleRank(r) >= roleRank(RoleGuest)
}

// RoleCanEdit reports whether the role can edit resources.
func RoleCanEdit(r UserRole) bool {
	return roleRank(r) >= roleRank(RoleMember)
}

// RoleCanCreate reports whether the role can create resources.
func RoleCanCreate(r UserRole) bool {
	return roleRank(r) >= roleRank(RoleAdmin)
}

// RoleCanDelete reports whether the role can delete resources.
func RoleCanDelete(r UserRole) bool {
	return roleRank(r) >= roleRank(RoleOwner)
}

// RoleIsAtLeast reports whether role meets the minimum required level.
func RoleIsAtLeast(role, minRole UserRole) bool {
	rank := roleRank(role)
	min := roleRank(minRole)
	if rank < 0 || min < 0 {
		return false
	}
	return rank >= min
}

// RequireRole implements the Forbidden side of the taxonomy at the call site:
// the resolver hands back the identity, the call site decides sufficiency.
func RequireRole(identity Identity, minRole UserRole) error {
	if identity == nil {
		return ErrUnauthenticated
	}
	if !RoleIsAtLeast(identity.Role(), minRole) {
		return ErrForbidden
	}
	return nil
}
