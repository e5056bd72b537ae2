package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
)

// DecisionError carries a gate denial out of the service layer as a typed
// error value; handlers translate it into a protocol response.
type DecisionError struct {
	Decision Decision
}

func (e *DecisionError) Error() string {
	return "tenant: denied: " + e.Decision.Code
}

func denialError(d Decision) error {
	return &DecisionError{Decision: d}
}

// Service implements organization and membership operations on top of the
// repository, the evaluator and the resolver.
type Service struct {
	repo      Repository
	resolver  *Resolver
	evaluator *Evaluator
	gates     *Gates
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService constructs a Service. The audit logger is optional.
func NewService(repo Repository, resolver *Resolver, evaluator *Evaluator, gates *Gates, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, evaluator: evaluator, gates: gates, audit: audit, logger: logger}
}

// Resolver exposes the underlying resolver for middleware wiring.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// ListOrganizations returns the caller's active organizations.
func (s *Service) ListOrganizations(ctx context.Context, userID string) ([]UserOrganization, error) {
	return s.repo.ListUserOrganizations(ctx, userID)
}

// CreateOrganizationInput is the payload for creating a tenant.
type CreateOrganizationInput struct {
	Name             string
	Slug             string
	Domain           string
	Description      string
	Type             OrgType
	SubscriptionPlan SubscriptionPlan
}

// CreateOrganization creates a tenant with the caller as org_owner. The slug
// is derived from the name when not supplied and is immutable afterwards.
func (s *Service) CreateOrganization(ctx context.Context, userID string, in CreateOrganizationInput) (*Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name required", httpx.ErrValidation)
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: organization name yields empty slug", httpx.ErrValidation)
	}
	orgType := in.Type
	if orgType == "" {
		orgType = OrgTypeMarketing
	}
	plan := in.SubscriptionPlan
	if plan == "" {
		plan = PlanStarter
	}

	org, err := s.repo.CreateOrganization(ctx, Organization{
		Name:             name,
		Slug:             slug,
		Domain:           strings.TrimSpace(in.Domain),
		Description:      strings.TrimSpace(in.Description),
		Type:             orgType,
		SubscriptionPlan: plan,
	}, userID)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, fmt.Errorf("%w: slug %q", httpx.ErrDuplicate, slug)
		}
		return nil, err
	}

	s.record(ctx, userID, org.ID, "organization.create", "organization", org.ID, map[string]any{"slug": org.Slug})
	return org, nil
}

// UpdateOrganizationInput carries optional organization mutations. Nil fields
// are left untouched; the slug cannot appear here at all.
type UpdateOrganizationInput struct {
	Name             *string
	Domain           *string
	Logo             *string
	Description      *string
	Type             *OrgType
	SubscriptionPlan *SubscriptionPlan
	Settings         map[string]any
}

// UpdateOrganization applies the input to the context's organization.
func (s *Service) UpdateOrganization(ctx context.Context, tc *Context, in UpdateOrganizationInput) (*Organization, error) {
	org := tc.Organization
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: organization name required", httpx.ErrValidation)
		}
		org.Name = name
	}
	if in.Domain != nil {
		org.Domain = strings.TrimSpace(*in.Domain)
	}
	if in.Logo != nil {
		org.Logo = strings.TrimSpace(*in.Logo)
	}
	if in.Description != nil {
		org.Description = strings.TrimSpace(*in.Description)
	}
	if in.Type != nil {
		org.Type = *in.Type
	}
	if in.SubscriptionPlan != nil {
		org.SubscriptionPlan = *in.SubscriptionPlan
	}
	if in.Settings != nil {
		org.Settings = in.Settings
	}

	updated, err := s.repo.UpdateOrganization(ctx, org)
	if err != nil {
		return nil, err
	}
	s.record(ctx, tc.UserID, org.ID, "organization.update", "organization", org.ID, nil)
	return updated, nil
}

// DeactivateOrganization soft-deletes the context's organization.
func (s *Service) DeactivateOrganization(ctx context.Context, tc *Context) error {
	if err := s.repo.DeactivateOrganization(ctx, tc.Organization.ID); err != nil {
		return err
	}
	s.record(ctx, tc.UserID, tc.Organization.ID, "organization.deactivate", "organization", tc.Organization.ID, nil)
	return nil
}

// ListMembers returns the active memberships of the context's organization.
func (s *Service) ListMembers(ctx context.Context, tc *Context) ([]Membership, error) {
	return s.repo.ListMembers(ctx, tc.Organization.ID)
}

// AddMember grants a user a role in the context's organization. The caller
// needs create:users for the assigned role (the conditioned table entry) and
// must outrank it; nobody grants a role at or above their own.
func (s *Service) AddMember(ctx context.Context, tc *Context, targetUserID string, role Role) (*Membership, error) {
	if !role.Valid() || role == RoleSuperAdmin {
		return nil, fmt.Errorf("%w: invalid role %q", httpx.ErrValidation, role)
	}
	if d := s.gates.RequirePermission(tc.UserID, tc, ActionCreate, ResourceUsers, map[string]any{"role": role.String()}); !d.Allowed {
		return nil, denialError(d)
	}
	if !tc.Role.Outranks(role) {
		return nil, fmt.Errorf("%w: cannot assign role %s", httpx.ErrForbidden, role)
	}

	member, err := s.repo.AddMember(ctx, Membership{
		OrganizationID: tc.Organization.ID,
		UserID:         targetUserID,
		Role:           role,
		InvitedBy:      tc.UserID,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tc.UserID, tc.Organization.ID, "member.add", "membership", member.ID, map[string]any{"user_id": targetUserID, "role": role.String()})
	return member, nil
}

// ChangeMemberRole updates a member's role. The caller needs update:users for
// the member's current role and must outrank both the current and the new
// role. Callers cannot change their own role.
func (s *Service) ChangeMemberRole(ctx context.Context, tc *Context, targetUserID string, role Role) (*Membership, error) {
	if !role.Valid() || role == RoleSuperAdmin {
		return nil, fmt.Errorf("%w: invalid role %q", httpx.ErrValidation, role)
	}
	if targetUserID == tc.UserID {
		return nil, fmt.Errorf("%w: cannot change own role", httpx.ErrForbidden)
	}

	current, err := s.repo.GetMembership(ctx, targetUserID, tc.Organization.ID)
	if err != nil {
		return nil, err
	}
	if d := s.gates.RequirePermission(tc.UserID, tc, ActionUpdate, ResourceUsers, map[string]any{"role": current.Role.String()}); !d.Allowed {
		return nil, denialError(d)
	}
	if !tc.Role.Outranks(current.Role) || !tc.Role.Outranks(role) {
		return nil, fmt.Errorf("%w: cannot manage role %s", httpx.ErrForbidden, current.Role)
	}

	member, err := s.repo.UpdateMemberRole(ctx, tc.Organization.ID, targetUserID, role)
	if err != nil {
		return nil, err
	}
	s.record(ctx, tc.UserID, tc.Organization.ID, "member.role_change", "membership", member.ID, map[string]any{"user_id": targetUserID, "from": current.Role.String(), "to": role.String()})
	return member, nil
}

// RemoveMember deactivates a membership. Same outranking rules as role
// changes; members cannot remove themselves (leaving is a separate flow).
func (s *Service) RemoveMember(ctx context.Context, tc *Context, targetUserID string) error {
	if targetUserID == tc.UserID {
		return fmt.Errorf("%w: cannot remove own membership", httpx.ErrForbidden)
	}
	current, err := s.repo.GetMembership(ctx, targetUserID, tc.Organization.ID)
	if err != nil {
		return err
	}
	if d := s.gates.RequirePermission(tc.UserID, tc, ActionDelete, ResourceUsers, map[string]any{"role": current.Role.String()}); !d.Allowed {
		return denialError(d)
	}
	if !tc.Role.Outranks(current.Role) {
		return fmt.Errorf("%w: cannot manage role %s", httpx.ErrForbidden, current.Role)
	}
	if err := s.repo.DeactivateMember(ctx, tc.Organization.ID, targetUserID); err != nil {
		return err
	}
	s.record(ctx, tc.UserID, tc.Organization.ID, "member.remove", "membership", current.ID, map[string]any{"user_id": targetUserID})
	return nil
}

// SwitchContext re-resolves the caller against the target organization and
// returns the fresh context. Nothing from any previous context survives.
func (s *Service) SwitchContext(ctx context.Context, userID, organizationID string) (*Context, error) {
	tc, err := s.resolver.SwitchContext(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, organizationID, "context.switch", "organization", organizationID, map[string]any{"role": tc.Role.String()})
	return tc, nil
}

func (s *Service) record(ctx context.Context, actorID, orgID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:        actorID,
		OrganizationID: orgID,
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		Meta:           meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
