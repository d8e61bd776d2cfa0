package authgate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	authgate "github.com/telar-labs/authgate"
)

func TestParseRole(t *testing.T) {
	for _, valid := range authgate.AllRoles() {
		role, ok := authgate.ParseRole(string(valid))
		assert.True(t, ok)
		assert.Equal(t, valid, role)
	}

	_, ok := authgate.ParseRole("superuser")
	assert.False(t, ok)

	_, ok = authgate.ParseRole("")
	assert.False(t, ok)
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role      authgate.UserRole
		canRead   bool
		canEdit   bool
		canCreate bool
		canDelete bool
	}{
		{authgate.RoleGuest, true, false, false, false},
		{authgate.RoleMember, true, true, false, false},
		{authgate.RoleAdmin, true, true, true, false},
		{authgate.RoleOwner, true, true, true, true},
		{"unknown", false, false, false, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			assert.Equal(t, tc.canRead, authgate.RoleCanRead(tc.role))
			assert.Equal(t, tc.canEdit, authgate.RoleCanEdit(tc.role))
			assert.Equal(t, tc.canCreate, authgate.RoleCanCreate(tc.role))
			assert.Equal(t, tc.canDelete, authgate.RoleCanDelete(tc.role))
		})
	}
}

func TestRoleIsAtLeast(t *testing.T) {
	assert.True(t, authgate.RoleIsAtLeast(authgate.RoleOwner, authgate.RoleGuest))
	assert.True(t, authgate.RoleIsAtLeast(authgate.RoleAdmin, authgate.RoleAdmin))
	assert.False(t, authgate.RoleIsAtLeast(authgate.RoleMember, authgate.RoleAdmin))

	// unknown roles rank nowhere
	assert.False(t, authgate.RoleIsAtLeast("superuser", authgate.RoleGuest))
	assert.False(t, authgate.RoleIsAtLeast(authgate.RoleOwner, "superuser"))
}

func TestRequireRole(t *testing.T) {
	t.Run("nil identity is unauthenticated", func(t *testing.T) {
		err := authgate.RequireRole(nil, authgate.RoleGuest)
		assert.ErrorIs(t, err, authgate.ErrUnauthenticated)
	})

	t.Run("insufficient role is forbidden", func(t *testing.T) {
		identity := TestIdentity{id: "u1", role: authgate.RoleMember}
		err := authgate.RequireRole(identity, authgate.RoleAdmin)
		assert.ErrorIs(t, err, authgate.ErrForbidden)
	})

	t.Run("sufficient role passes", func(t *testing.T) {
		identity := TestIdentity{id: "u1", role: authgate.RoleAdmin}
		assert.NoError(t, authgate.RequireRole(identity, authgate.RoleMember))
		assert.NoError(t, authgate.RequireRole(identity, authgate.RoleAdmin))
	})
}
