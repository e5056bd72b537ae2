package tenant

// Role is the closed set of membership roles, ordered by privilege.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgOwner   Role = "org_owner"
	RoleOrgAdmin   Role = "org_admin"
	RoleOrgManager Role = "org_manager"
	RoleOrgUser    Role = "org_user"
	RoleOrgViewer  Role = "org_viewer"
)

// roleHierarchy lists all roles from most to least privileged. Index order is
// the single source of truth for privilege comparisons.
var roleHierarchy = []Role{
	RoleSuperAdmin,
	RoleOrgOwner,
	RoleOrgAdmin,
	RoleOrgManager,
	RoleOrgUser,
	RoleOrgViewer,
}

// RoleHierarchy returns the ordered list of roles, most privileged first.
func RoleHierarchy() []Role {
	out := make([]Role, len(roleHierarchy))
	copy(out, roleHierarchy)
	return out
}

// ParseRole maps a stored string onto the closed role set. Unknown values are
// rejected; callers decide whether that means deny or fall back to the lowest
// privilege, they never get an elevated default from here.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	return r.rank() >= 0
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Outranks reports whether r holds strictly more privilege than other.
// A role never outranks itself, and unknown roles outrank nothing.
func (r Role) Outranks(other Role) bool {
	ra, rb := r.rank(), other.rank()
	return ra >= 0 && rb >= 0 && ra < rb
}

// IsRoleHigher reports whether roleA holds strictly more privilege than roleB.
func IsRoleHigher(roleA, roleB Role) bool {
	return roleA.Outranks(roleB)
}

func (r Role) rank() int {
	for i, candidate := range roleHierarchy {
		if candidate == r {
			return i
		}
	}
	return -1
}
