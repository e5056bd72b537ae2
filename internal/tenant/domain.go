package tenant

import "time"

// OrgType classifies an organization.
type OrgType string

const (
	OrgTypeMarketing  OrgType = "marketing"
	OrgTypeSupport    OrgType = "support"
	OrgTypeTrading    OrgType = "trading"
	OrgTypeEnterprise OrgType = "enterprise"
)

// SubscriptionPlan is the billing tier of an organization.
type SubscriptionPlan string

const (
	PlanStarter      SubscriptionPlan = "starter"
	PlanProfessional SubscriptionPlan = "professional"
	PlanEnterprise   SubscriptionPlan = "enterprise"
)

// Organization is a tenant. Organizations are never hard-deleted; IsActive is
// the only lifecycle flag, and Slug is immutable once created.
type Organization struct {
	ID               string
	Name             string
	Slug             string
	Domain           string
	Logo             string
	Description      string
	Type             OrgType
	SubscriptionPlan SubscriptionPlan
	Settings         map[string]any
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Membership joins a user to an organization with a role. At most one active
// membership exists per (user, organization) pair; removal deactivates, it
// does not delete.
type Membership struct {
	ID             string
	OrganizationID string
	UserID         string
	Role           Role
	// Permissions is the per-member boolean override map stored alongside the
	// role. It is carried on the context snapshot for API consumers but does
	// not feed the role-table evaluator.
	Permissions map[string]bool
	InvitedBy   string
	JoinedAt    time.Time
	IsActive    bool
}

// UserOrganization pairs an organization with the caller's membership in it.
type UserOrganization struct {
	Organization Organization
	Membership   Membership
}

// Context is the request-scoped tenant snapshot: organization, membership,
// derived role and permissions. It is built fresh by the resolver for every
// request and never mutated; switching organizations produces a new Context.
type Context struct {
	Organization Organization
	Membership   Membership
	UserID       string
	Role         Role
	Permissions  map[string]bool
	Capabilities Capabilities
}

// OrganizationID is a convenience accessor for the tenant identifier.
func (c *Context) OrganizationID() string {
	if c == nil {
		return ""
	}
	return c.Organization.ID
}

// Can evaluates a permission for the context's role using the supplied
// evaluator, merging the caller/organization identifiers into the condition
// context.
func (c *Context) Can(ev *Evaluator, action Action, resource Resource, extra map[string]any) bool {
	if c == nil || ev == nil {
		return false
	}
	evalCtx := map[string]any{
		"userId":         c.UserID,
		"organizationId": c.Organization.ID,
	}
	for k, v := range extra {
		evalCtx[k] = v
	}
	return ev.HasPermission(c.Role, action, resource, evalCtx)
}
