package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleHierarchyOrder(t *testing.T) {
	want := []Role{RoleSuperAdmin, RoleOrgOwner, RoleOrgAdmin, RoleOrgManager, RoleOrgUser, RoleOrgViewer}
	assert.Equal(t, want, RoleHierarchy())
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("org_admin")
	require.True(t, ok)
	assert.Equal(t, RoleOrgAdmin, role)

	_, ok = ParseRole("admin")
	assert.False(t, ok)

	_, ok = ParseRole("")
	assert.False(t, ok)
}

func TestOutranks(t *testing.T) {
	cases := []struct {
		a, b Role
		want bool
	}{
		{RoleSuperAdmin, RoleOrgOwner, true},
		{RoleOrgOwner, RoleOrgAdmin, true},
		{RoleOrgAdmin, RoleOrgManager, true},
		{RoleOrgManager, RoleOrgUser, true},
		{RoleOrgUser, RoleOrgViewer, true},
		{RoleOrgViewer, RoleOrgUser, false},
		{RoleOrgUser, RoleOrgOwner, false},
		// a role never outranks itself
		{RoleOrgAdmin, RoleOrgAdmin, false},
		// unknown roles outrank nothing and are outranked by nothing
		{Role("ghost"), RoleOrgViewer, false},
		{RoleSuperAdmin, Role("ghost"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.a.Outranks(tc.b), "%s outranks %s", tc.a, tc.b)
		assert.Equal(t, tc.want, IsRoleHigher(tc.a, tc.b))
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range RoleHierarchy() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("owner").Valid())
}
