package users

import (
	"context"
	"strings"

	"github.com/automation-global/platform/internal/tenant"
)

// Service handles member business logic within a tenant context.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListMembers returns the active members of the context's organization.
func (s *Service) ListMembers(ctx context.Context, tc *tenant.Context) ([]Member, error) {
	return s.repo.ListMembers(ctx, tc.Organization.ID)
}

// GetMember returns one member of the context's organization.
func (s *Service) GetMember(ctx context.Context, tc *tenant.Context, userID string) (*Member, error) {
	return s.repo.GetMember(ctx, tc.Organization.ID, userID)
}

// UpdateProfileInput carries mutable profile fields.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

// UpdateProfile applies profile changes to a member of the organization and
// returns the updated view. Authorization happens at the route; the target
// must still belong to the tenant.
func (s *Service) UpdateProfile(ctx context.Context, tc *tenant.Context, userID string, in UpdateProfileInput) (*Member, error) {
	current, err := s.repo.GetMember(ctx, tc.Organization.ID, userID)
	if err != nil {
		return nil, err
	}
	firstName := current.FirstName
	lastName := current.LastName
	if in.FirstName != nil {
		firstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		lastName = strings.TrimSpace(*in.LastName)
	}
	if err := s.repo.UpdateProfile(ctx, userID, firstName, lastName); err != nil {
		return nil, err
	}
	return s.repo.GetMember(ctx, tc.Organization.ID, userID)
}
