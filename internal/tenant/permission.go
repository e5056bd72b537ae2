package tenant

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Action is a verb describing what is being attempted.
type Action string

// Resource is a noun describing what is being acted upon.
type Resource string

// Wildcard matches any action or resource in the permission table.
const Wildcard = "*"

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionUse    Action = "use"
	ActionAny    Action = Wildcard
)

const (
	ResourceOrganization Resource = "organization"
	ResourceUsers        Resource = "users"
	ResourceBilling      Resource = "billing"
	ResourceSettings     Resource = "settings"
	ResourceAI           Resource = "ai"
	ResourceModules      Resource = "modules"
	ResourceAutomations  Resource = "automations"
	ResourceIntegrations Resource = "integrations"
	ResourceAnalytics    Resource = "analytics"
	ResourceLogs         Resource = "logs"
	ResourceAny          Resource = Wildcard
)

// actions and resources enumerate the concrete (non-wildcard) vocabulary,
// used when expanding wildcard entries into flat lookup maps.
var (
	actions   = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionUse}
	resources = []Resource{
		ResourceOrganization, ResourceUsers, ResourceBilling, ResourceSettings,
		ResourceAI, ResourceModules, ResourceAutomations, ResourceIntegrations,
		ResourceAnalytics, ResourceLogs,
	}
)

// Permission grants an action on a resource, optionally constrained by
// exact-match conditions evaluated against a per-request context.
type Permission struct {
	Action     Action
	Resource   Resource
	Conditions map[string]any
}

// rolePermissions is the security policy of the whole system. It is additive:
// there are no deny entries, absence of a match means denial. Review changes
// here as carefully as a database migration.
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		{Action: ActionAny, Resource: ResourceAny},
	},
	RoleOrgOwner: {
		{Action: ActionAny, Resource: ResourceOrganization},
		{Action: ActionAny, Resource: ResourceUsers},
		{Action: ActionAny, Resource: ResourceBilling},
		{Action: ActionAny, Resource: ResourceSettings},
		{Action: ActionAny, Resource: ResourceAI},
		{Action: ActionAny, Resource: ResourceModules},
		{Action: ActionAny, Resource: ResourceAutomations},
		{Action: ActionAny, Resource: ResourceIntegrations},
		{Action: ActionRead, Resource: ResourceAnalytics},
		{Action: ActionRead, Resource: ResourceLogs},
	},
	RoleOrgAdmin: {
		{Action: ActionRead, Resource: ResourceOrganization},
		{Action: ActionUpdate, Resource: ResourceOrganization},
		{Action: ActionAny, Resource: ResourceUsers},
		{Action: ActionRead, Resource: ResourceBilling},
		{Action: ActionAny, Resource: ResourceSettings},
		{Action: ActionAny, Resource: ResourceAI},
		{Action: ActionAny, Resource: ResourceModules},
		{Action: ActionAny, Resource: ResourceAutomations},
		{Action: ActionAny, Resource: ResourceIntegrations},
		{Action: ActionRead, Resource: ResourceAnalytics},
	},
	RoleOrgManager: {
		{Action: ActionRead, Resource: ResourceOrganization},
		{Action: ActionRead, Resource: ResourceUsers},
		{Action: ActionCreate, Resource: ResourceUsers, Conditions: map[string]any{"role": "org_user"}},
		{Action: ActionUpdate, Resource: ResourceUsers, Conditions: map[string]any{"role": "org_user"}},
		{Action: ActionRead, Resource: ResourceSettings},
		{Action: ActionUpdate, Resource: ResourceSettings, Conditions: map[string]any{"scope": "module"}},
		{Action: ActionAny, Resource: ResourceAI},
		{Action: ActionAny, Resource: ResourceModules},
		{Action: ActionAny, Resource: ResourceAutomations},
		{Action: ActionRead, Resource: ResourceIntegrations},
		{Action: ActionCreate, Resource: ResourceIntegrations},
		{Action: ActionRead, Resource: ResourceAnalytics},
	},
	RoleOrgUser: {
		{Action: ActionRead, Resource: ResourceOrganization},
		{Action: ActionRead, Resource: ResourceUsers},
		{Action: ActionUpdate, Resource: ResourceUsers, Conditions: map[string]any{"self": true}},
		{Action: ActionRead, Resource: ResourceSettings},
		{Action: ActionUse, Resource: ResourceAI},
		{Action: ActionRead, Resource: ResourceModules},
		{Action: ActionUse, Resource: ResourceModules},
		{Action: ActionCreate, Resource: ResourceAutomations},
		{Action: ActionRead, Resource: ResourceAutomations, Conditions: map[string]any{"owner": true}},
		{Action: ActionUpdate, Resource: ResourceAutomations, Conditions: map[string]any{"owner": true}},
		{Action: ActionDelete, Resource: ResourceAutomations, Conditions: map[string]any{"owner": true}},
		{Action: ActionRead, Resource: ResourceIntegrations},
	},
	RoleOrgViewer: {
		{Action: ActionRead, Resource: ResourceOrganization},
		{Action: ActionRead, Resource: ResourceUsers},
		{Action: ActionUpdate, Resource: ResourceUsers, Conditions: map[string]any{"self": true}},
		{Action: ActionRead, Resource: ResourceSettings},
		{Action: ActionRead, Resource: ResourceModules},
		{Action: ActionRead, Resource: ResourceAutomations, Conditions: map[string]any{"public": true}},
		{Action: ActionRead, Resource: ResourceIntegrations},
	},
}

// RolePermissions returns the permission list for a role, nil for unknown roles.
func RolePermissions(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Evaluator answers permission questions against the static role table.
// Evaluation itself is a pure function; the evaluator only adds the warning
// side channel for fail-closed denials of roles the table does not know.
type Evaluator struct {
	logger       *slog.Logger
	unknownRoles *prometheus.CounterVec
}

// NewEvaluator constructs an Evaluator. Both arguments are optional; pass a
// registerer to surface unknown-role denials as a metric.
func NewEvaluator(logger *slog.Logger, reg prometheus.Registerer) *Evaluator {
	ev := &Evaluator{logger: logger}
	if reg != nil {
		ev.unknownRoles = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_authz_unknown_role_total",
			Help: "Permission checks denied because the role is not in the table.",
		}, []string{"role"})
		reg.MustRegister(ev.unknownRoles)
	}
	return ev
}

// HasPermission reports whether role may perform action on resource given the
// runtime context. Unknown roles are denied and reported through the warning
// side channel, never through an error or a silent grant.
func (e *Evaluator) HasPermission(role Role, action Action, resource Resource, evalCtx map[string]any) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		e.warnUnknownRole(role)
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	for _, perm := range perms {
		if matches(perm, action, resource, evalCtx) {
			return true
		}
	}
	return false
}

// matches implements the entry-matching contract: wildcard-or-equal for
// action and resource, and for conditioned entries every condition key must be
// present in the context and equal by value. A missing key is a non-match,
// not a partial match.
func matches(perm Permission, action Action, resource Resource, evalCtx map[string]any) bool {
	if perm.Action != ActionAny && perm.Action != action {
		return false
	}
	if perm.Resource != ResourceAny && perm.Resource != resource {
		return false
	}
	for key, want := range perm.Conditions {
		got, ok := evalCtx[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (e *Evaluator) warnUnknownRole(role Role) {
	if e.logger != nil {
		e.logger.Warn("permission check for unknown role", slog.String("role", role.String()))
	}
	if e.unknownRoles != nil {
		e.unknownRoles.WithLabelValues(role.String()).Inc()
	}
}

// IsAdminRole reports whether the role may perform administrative actions.
func IsAdminRole(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleOrgOwner, RoleOrgAdmin:
		return true
	}
	return false
}

// CanManageUsers reports whether the role may manage organization members.
func CanManageUsers(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleOrgOwner, RoleOrgAdmin, RoleOrgManager:
		return true
	}
	return false
}

// CanAccessBilling reports whether the role may see billing data.
func CanAccessBilling(role Role) bool {
	return role == RoleSuperAdmin || role == RoleOrgOwner
}

// ExpandPermissions flattens a role's table entries into an
// "action:resource" -> true map for cheap repeated lookups. Wildcard entries
// are expanded over the concrete vocabulary. Conditioned entries are included;
// consumers needing condition semantics must go through the evaluator.
func ExpandPermissions(role Role) map[string]bool {
	expanded := make(map[string]bool)
	for _, perm := range rolePermissions[role] {
		expanded[permKey(perm.Action, perm.Resource)] = true
		if perm.Action == ActionAny {
			for _, a := range actions {
				expanded[permKey(a, perm.Resource)] = true
			}
		}
		if perm.Resource == ResourceAny {
			for _, r := range resources {
				expanded[permKey(perm.Action, r)] = true
			}
		}
		if perm.Action == ActionAny && perm.Resource == ResourceAny {
			for _, a := range actions {
				for _, r := range resources {
					expanded[permKey(a, r)] = true
				}
			}
		}
	}
	return expanded
}

func permKey(action Action, resource Resource) string {
	return string(action) + ":" + string(resource)
}

// Level is the coarse privilege tag exposed to route and UI decisions.
type Level string

const (
	LevelAdmin   Level = "admin"
	LevelManager Level = "manager"
	LevelUser    Level = "user"
	LevelViewer  Level = "viewer"
)

// Capabilities summarises a role into the booleans the dashboard needs,
// computed once per tenant context.
type Capabilities struct {
	CanManageOrg         bool  `json:"canManageOrg"`
	CanManageUsers       bool  `json:"canManageUsers"`
	CanAccessBilling     bool  `json:"canAccessBilling"`
	CanUseAI             bool  `json:"canUseAI"`
	CanCreateAutomations bool  `json:"canCreateAutomations"`
	CanViewAnalytics     bool  `json:"canViewAnalytics"`
	Level                Level `json:"level"`
}

// Capabilities derives the capability summary for a role.
func (e *Evaluator) Capabilities(role Role) Capabilities {
	level := LevelViewer
	switch {
	case IsAdminRole(role):
		level = LevelAdmin
	case CanManageUsers(role):
		level = LevelManager
	case role == RoleOrgUser:
		level = LevelUser
	}
	return Capabilities{
		CanManageOrg:         e.HasPermission(role, ActionUpdate, ResourceOrganization, nil),
		CanManageUsers:       CanManageUsers(role),
		CanAccessBilling:     CanAccessBilling(role),
		CanUseAI:             e.HasPermission(role, ActionUse, ResourceAI, nil),
		CanCreateAutomations: e.HasPermission(role, ActionCreate, ResourceAutomations, nil),
		CanViewAnalytics:     e.HasPermission(role, ActionRead, ResourceAnalytics, nil),
		Level:                level,
	}
}
