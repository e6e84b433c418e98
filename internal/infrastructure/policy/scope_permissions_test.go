package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	perm, err := ParsePermission("payment:refund")
	require.NoError(t, err)
	assert.Equal(t, "payment", perm.Resource)
	assert.Equal(t, "refund", perm.Action)
	assert.Equal(t, "payment:refund", perm.String())

	for _, bad := range []string{"", "payment", ":refund", "payment:"} {
		_, err := ParsePermission(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestEffectivePermissionsInheritance(t *testing.T) {
	engine := NewScopePermissionEngine()

	effective := engine.EffectivePermissions([]string{"analytics"})

	// Direct grants.
	assert.Contains(t, effective, "analytics:read")
	assert.Contains(t, effective, "analytics:export")
	assert.Contains(t, effective, "api_key:monitor")
	// Inherited from read.
	assert.Contains(t, effective, "user:read")
	assert.Contains(t, effective, "api_key:read")
	// Not granted.
	assert.NotContains(t, effective, "user:write")
	assert.NotContains(t, effective, "payment:refund")
}

func TestEffectivePermissionsUnknownScopeIsEmpty(t *testing.T) {
	engine := NewScopePermissionEngine()
	assert.Empty(t, engine.EffectivePermissions([]string{"bogus"}))
}

func TestAdminInheritsEverything(t *testing.T) {
	engine := NewScopePermissionEngine()
	admin := engine.EffectivePermissions([]string{"admin"})

	for _, scope := range engine.KnownScopes() {
		for perm := range engine.EffectivePermissions([]string{scope}) {
			assert.Contains(t, admin, perm, "admin must cover %s of scope %s", perm, scope)
		}
	}
	assert.Contains(t, admin, "rate_limit:manage")
}

func TestEffectivePermissionsOrderInsensitive(t *testing.T) {
	engine := NewScopePermissionEngine()

	a := engine.EffectivePermissions([]string{"read", "write", "write"})
	b := engine.EffectivePermissions([]string{"write", "read"})
	assert.Equal(t, a, b, "scope order and duplicates do not change the result")
}

func TestHasPermission(t *testing.T) {
	engine := NewScopePermissionEngine()

	assert.True(t, engine.HasPermission([]string{"write"}, "user", "read"), "write inherits read")
	assert.True(t, engine.HasPermission([]string{"payments"}, "payment", "refund"))
	assert.False(t, engine.HasPermission([]string{"read"}, "user", "write"))
	assert.False(t, engine.HasPermission(nil, "user", "read"))
}

func TestHasAnyPermission(t *testing.T) {
	engine := NewScopePermissionEngine()

	assert.True(t, engine.HasAnyPermission([]string{"read"}, []string{"user:write", "user:read"}))
	assert.False(t, engine.HasAnyPermission([]string{"read"}, []string{"user:write", "payment:read"}))
	assert.False(t, engine.HasAnyPermission([]string{"read"}, nil))
}

func TestResourcePermissionsSorted(t *testing.T) {
	engine := NewScopePermissionEngine()

	actions := engine.ResourcePermissions([]string{"keys"}, "api_key")
	assert.Equal(t, []string{"create", "list", "read", "revoke", "rotate"}, actions)

	assert.Empty(t, engine.ResourcePermissions([]string{"read"}, "payment"))
}

func TestSuggestScopesSmallestFirst(t *testing.T) {
	engine := NewScopePermissionEngine()

	suggestions := engine.SuggestScopes([]string{"user:read"})
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "read", suggestions[0], "the narrowest covering scope comes first")
	assert.Contains(t, suggestions, "admin")

	assert.Equal(t, []string{"admin"}, engine.SuggestScopes([]string{"rate_limit:manage"}))
	assert.Empty(t, engine.SuggestScopes([]string{"nothing:grants_this"}))
}

func TestCheckScopeConflicts(t *testing.T) {
	engine := NewScopePermissionEngine()

	assert.Equal(t, []string{"read"}, engine.CheckScopeConflicts([]string{"read", "write"}),
		"read is implied by write")
	assert.Empty(t, engine.CheckScopeConflicts([]string{"write", "payments"}))

	redundant := engine.CheckScopeConflicts([]string{"admin", "read", "keys"})
	assert.ElementsMatch(t, []string{"read", "keys"}, redundant, "admin implies both")
}

func TestIsKnownScope(t *testing.T) {
	assert.True(t, IsKnownScope("read"))
	assert.True(t, IsKnownScope("admin"))
	assert.False(t, IsKnownScope("root"))
}
