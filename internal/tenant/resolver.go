package tenant

import (
	"context"
	"errors"
	"log/slog"

	"github.com/automation-global/platform/internal/shared"
)

// ErrAccessDenied is the only error the resolver surfaces to the route layer.
// Missing membership, deactivated membership, unknown organization and
// deactivated organization all collapse into it so callers cannot probe which
// tenants exist.
var ErrAccessDenied = errors.New("tenant: access denied")

// Resolver builds tenant contexts from persistent membership state.
type Resolver struct {
	repo      Repository
	evaluator *Evaluator
	logger    *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, evaluator *Evaluator, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, evaluator: evaluator, logger: logger}
}

// Resolve loads the caller's active membership in the target organization and
// produces an immutable tenant context. It performs reads only; nothing about
// the membership or organization is mutated.
func (r *Resolver) Resolve(ctx context.Context, userID, organizationID string) (*Context, error) {
	if userID == "" || organizationID == "" {
		return nil, ErrAccessDenied
	}

	membership, err := r.repo.GetMembership(ctx, userID, organizationID)
	if err != nil {
		return nil, r.deny(userID, organizationID, "membership lookup", err)
	}

	org, err := r.repo.GetOrganization(ctx, organizationID)
	if err != nil {
		return nil, r.deny(userID, organizationID, "organization lookup", err)
	}
	if !org.IsActive {
		return nil, r.deny(userID, organizationID, "organization inactive", nil)
	}

	// A membership row without a role gets the lowest privilege, never an
	// elevated default. Unknown non-empty roles are kept as-is: the evaluator
	// fails closed on them and raises the warning signal.
	role := membership.Role
	if role == "" {
		role = RoleOrgViewer
	}

	return &Context{
		Organization: *org,
		Membership:   *membership,
		UserID:       userID,
		Role:         role,
		Permissions:  ExpandPermissions(role),
		Capabilities: r.evaluator.Capabilities(role),
	}, nil
}

// SwitchContext re-establishes trust against current membership state and
// returns a fresh context for the target organization. It deliberately shares
// the Resolve path end to end: a revoked or downgraded membership takes effect
// on the very next switch, never a cached snapshot.
func (r *Resolver) SwitchContext(ctx context.Context, userID, organizationID string) (*Context, error) {
	return r.Resolve(ctx, userID, organizationID)
}

// DefaultOrganization picks the organization to use when a request carries no
// explicit tenant identifier: the caller's oldest active membership.
func (r *Resolver) DefaultOrganization(ctx context.Context, userID string) (string, error) {
	orgs, err := r.repo.ListUserOrganizations(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(orgs) == 0 {
		return "", shared.ErrNotFound
	}
	return orgs[0].Organization.ID, nil
}

// deny records the internal cause and returns the uniform denial. The cause
// never reaches the caller.
func (r *Resolver) deny(userID, organizationID, cause string, err error) error {
	if r.logger != nil {
		attrs := []any{
			slog.String("user_id", userID),
			slog.String("organization_id", organizationID),
			slog.String("cause", cause),
		}
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			attrs = append(attrs, slog.Any("error", err))
		}
		r.logger.Debug("tenant resolution denied", attrs...)
	}
	return ErrAccessDenied
}
