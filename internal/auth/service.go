package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
)

// OrganizationProvisioner creates the initial tenant for a new account.
// Satisfied by tenant.Repository.
type OrganizationProvisioner interface {
	CreateOrganization(ctx context.Context, org tenant.Organization, ownerUserID string) (*tenant.Organization, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	orgs   OrganizationProvisioner
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, orgs OrganizationProvisioner, logger *slog.Logger) *Service {
	return &Service{repo: repo, orgs: orgs, logger: logger}
}

// Authenticate validates email/password credentials. Every failure mode maps
// to the same sentinel so callers cannot probe for registered emails.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil && s.logger != nil {
		s.logger.Warn("touch last login", slog.Any("error", err))
	}
	return user, nil
}

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Email            string
	Username         string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
}

// Register creates a user and provisions their first organization with the
// user as org_owner. The organization name defaults to a personal workspace.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, *tenant.Organization, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, User{
		Email:        strings.TrimSpace(in.Email),
		Username:     strings.TrimSpace(in.Username),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, nil, err
	}

	orgName := strings.TrimSpace(in.OrganizationName)
	if orgName == "" {
		orgName = user.Username + " workspace"
	}
	slug := tenant.Slugify(orgName)
	org, err := s.orgs.CreateOrganization(ctx, tenant.Organization{
		Name:             orgName,
		Slug:             slug,
		Type:             tenant.OrgTypeMarketing,
		SubscriptionPlan: tenant.PlanStarter,
	}, user.ID)
	if err != nil {
		// Retry once with a disambiguated slug before giving up; the account
		// already exists at this point and must come back usable.
		org, err = s.orgs.CreateOrganization(ctx, tenant.Organization{
			Name:             orgName,
			Slug:             slug + "-" + user.ID[:8],
			Type:             tenant.OrgTypeMarketing,
			SubscriptionPlan: tenant.PlanStarter,
		}, user.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("auth: provision organization: %w", err)
		}
	}
	return user, org, nil
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
