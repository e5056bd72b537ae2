package tenant

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Machine-readable denial codes, stable across releases. Audit tooling keys
// off these; do not rename.
const (
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeTenantRequired   = "TENANT_REQUIRED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeAccessDenied     = "ACCESS_DENIED"
)

// Pair names one required permission.
type Pair struct {
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
}

// Decision is the structured outcome of a gate. Denials always carry a code
// and the required-versus-actual detail; a bare boolean is never enough for
// the audit trail.
type Decision struct {
	Allowed       bool   `json:"allowed"`
	Code          string `json:"code,omitempty"`
	Role          Role   `json:"role,omitempty"`
	Required      []Pair `json:"required,omitempty"`
	RequiredRoles []Role `json:"requiredRoles,omitempty"`
	Missing       *Pair  `json:"missing,omitempty"`
	SelfAccess    bool   `json:"selfAccess,omitempty"`
}

func allowed() Decision {
	return Decision{Allowed: true}
}

// Gates builds authorization decisions on top of the evaluator. All methods
// are side-effect free on success; denials increment the denial counter when
// one is registered.
type Gates struct {
	evaluator *Evaluator
	denials   *prometheus.CounterVec
}

// NewGates constructs Gates. The registerer is optional.
func NewGates(evaluator *Evaluator, reg prometheus.Registerer) *Gates {
	g := &Gates{evaluator: evaluator}
	if reg != nil {
		g.denials = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_authz_denials_total",
			Help: "Authorization gate denials by reason code.",
		}, []string{"code"})
		reg.MustRegister(g.denials)
	}
	return g
}

func (g *Gates) deny(d Decision) Decision {
	if g.denials != nil && d.Code != "" {
		g.denials.WithLabelValues(d.Code).Inc()
	}
	return d
}

// evalContext merges the caller/tenant identifiers with gate-specific extras
// into the condition context handed to the evaluator.
func evalContext(userID string, tc *Context, extra map[string]any) map[string]any {
	evalCtx := map[string]any{"userId": userID}
	if tc != nil {
		evalCtx["organizationId"] = tc.Organization.ID
	}
	for k, v := range extra {
		evalCtx[k] = v
	}
	return evalCtx
}

// contextRole picks the role to evaluate with. Without a tenant context the
// lowest privilege applies; gates that need a tenant have already denied by
// the time this is consulted.
func contextRole(tc *Context) Role {
	if tc == nil {
		return RoleOrgViewer
	}
	return tc.Role
}

// RequirePermission allows the call when the caller's role grants
// action:resource. Tenant-scoped resources demand a resolved tenant context.
func (g *Gates) RequirePermission(userID string, tc *Context, action Action, resource Resource, extra map[string]any) Decision {
	if userID == "" {
		return g.deny(Decision{Code: CodeAuthRequired, Required: []Pair{{action, resource}}})
	}
	if resource != ResourceAny && tc == nil {
		return g.deny(Decision{Code: CodeTenantRequired, Required: []Pair{{action, resource}}})
	}
	role := contextRole(tc)
	if !g.evaluator.HasPermission(role, action, resource, evalContext(userID, tc, extra)) {
		return g.deny(Decision{
			Code:     CodePermissionDenied,
			Role:     role,
			Required: []Pair{{action, resource}},
		})
	}
	return allowed()
}

// RequireAny allows the call when at least one pair is granted. The denial
// names every pair that was attempted.
func (g *Gates) RequireAny(userID string, tc *Context, pairs []Pair, extra map[string]any) Decision {
	if userID == "" {
		return g.deny(Decision{Code: CodeAuthRequired, Required: pairs})
	}
	if tc == nil {
		return g.deny(Decision{Code: CodeTenantRequired, Required: pairs})
	}
	evalCtx := evalContext(userID, tc, extra)
	for _, p := range pairs {
		if g.evaluator.HasPermission(tc.Role, p.Action, p.Resource, evalCtx) {
			return allowed()
		}
	}
	return g.deny(Decision{Code: CodePermissionDenied, Role: tc.Role, Required: pairs})
}

// RequireAll denies at the first pair the role lacks, naming exactly that
// pair so the caller knows which permission was missing.
func (g *Gates) RequireAll(userID string, tc *Context, pairs []Pair, extra map[string]any) Decision {
	if userID == "" {
		return g.deny(Decision{Code: CodeAuthRequired, Required: pairs})
	}
	if tc == nil {
		return g.deny(Decision{Code: CodeTenantRequired, Required: pairs})
	}
	evalCtx := evalContext(userID, tc, extra)
	for _, p := range pairs {
		if !g.evaluator.HasPermission(tc.Role, p.Action, p.Resource, evalCtx) {
			missing := p
			return g.deny(Decision{
				Code:     CodePermissionDenied,
				Role:     tc.Role,
				Required: pairs,
				Missing:  &missing,
			})
		}
	}
	return allowed()
}

// RequireSelfOrPermission allows a caller acting on their own user id
// unconditionally; the permission table is never consulted for self-access.
// Anyone else must hold action:resource.
func (g *Gates) RequireSelfOrPermission(userID, targetUserID string, tc *Context, action Action, resource Resource, extra map[string]any) Decision {
	if userID == "" {
		return g.deny(Decision{Code: CodeAuthRequired, Required: []Pair{{action, resource}}})
	}
	if targetUserID != "" && targetUserID == userID {
		return Decision{Allowed: true, SelfAccess: true}
	}
	return g.RequirePermission(userID, tc, action, resource, extra)
}

// RequireRole allows only when the context's role is literally one of the
// accepted roles. No hierarchy inference happens here; use Role.Outranks for
// privilege comparisons.
func (g *Gates) RequireRole(userID string, tc *Context, roles ...Role) Decision {
	if userID == "" {
		return g.deny(Decision{Code: CodeAuthRequired, RequiredRoles: roles})
	}
	if tc == nil {
		return g.deny(Decision{Code: CodeTenantRequired, RequiredRoles: roles})
	}
	for _, r := range roles {
		if tc.Role == r {
			return allowed()
		}
	}
	return g.deny(Decision{Code: CodePermissionDenied, Role: tc.Role, RequiredRoles: roles})
}
