package tenant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/automation-global/platform/internal/shared"
)

// mockRepository is a map-backed Repository for tests.
type mockRepository struct {
	orgs        map[string]*Organization
	memberships map[string]*Membership
	nextOrgID   int
	nextMemID   int

	// Error injection
	getOrgError        error
	getMembershipError error
	listOrgsError      error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orgs:        make(map[string]*Organization),
		memberships: make(map[string]*Membership),
		nextOrgID:   1,
		nextMemID:   1,
	}
}

func membershipKey(userID, organizationID string) string {
	return userID + "|" + organizationID
}

func (m *mockRepository) addOrg(org Organization) *Organization {
	if org.ID == "" {
		org.ID = fmt.Sprintf("org-%d", m.nextOrgID)
		m.nextOrgID++
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	m.orgs[org.ID] = &org
	return &org
}

func (m *mockRepository) addMembership(mem Membership) *Membership {
	if mem.ID == "" {
		mem.ID = fmt.Sprintf("mem-%d", m.nextMemID)
		m.nextMemID++
	}
	if mem.JoinedAt.IsZero() {
		mem.JoinedAt = time.Now().UTC()
	}
	m.memberships[membershipKey(mem.UserID, mem.OrganizationID)] = &mem
	return &mem
}

func (m *mockRepository) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	if m.getOrgError != nil {
		return nil, m.getOrgError
	}
	org, ok := m.orgs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *org
	return &out, nil
}

func (m *mockRepository) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	for _, org := range m.orgs {
		if org.Slug == slug {
			out := *org
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) ListUserOrganizations(ctx context.Context, userID string) ([]UserOrganization, error) {
	if m.listOrgsError != nil {
		return nil, m.listOrgsError
	}
	var out []UserOrganization
	for _, mem := range m.memberships {
		if mem.UserID != userID || !mem.IsActive {
			continue
		}
		org, ok := m.orgs[mem.OrganizationID]
		if !ok || !org.IsActive {
			continue
		}
		out = append(out, UserOrganization{Organization: *org, Membership: *mem})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Membership.JoinedAt.Before(out[j].Membership.JoinedAt)
	})
	return out, nil
}

func (m *mockRepository) GetMembership(ctx context.Context, userID, organizationID string) (*Membership, error) {
	if m.getMembershipError != nil {
		return nil, m.getMembershipError
	}
	mem, ok := m.memberships[membershipKey(userID, organizationID)]
	if !ok || !mem.IsActive {
		return nil, shared.ErrNotFound
	}
	out := *mem
	return &out, nil
}

func (m *mockRepository) CreateOrganization(ctx context.Context, org Organization, ownerUserID string) (*Organization, error) {
	for _, existing := range m.orgs {
		if existing.Slug == org.Slug {
			return nil, ErrSlugTaken
		}
	}
	org.IsActive = true
	created := m.addOrg(org)
	m.addMembership(Membership{
		OrganizationID: created.ID,
		UserID:         ownerUserID,
		Role:           RoleOrgOwner,
		IsActive:       true,
	})
	return created, nil
}

func (m *mockRepository) UpdateOrganization(ctx context.Context, org Organization) (*Organization, error) {
	existing, ok := m.orgs[org.ID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	// the slug stays whatever it was at creation
	org.Slug = existing.Slug
	org.IsActive = existing.IsActive
	m.orgs[org.ID] = &org
	out := org
	return &out, nil
}

func (m *mockRepository) DeactivateOrganization(ctx context.Context, id string) error {
	org, ok := m.orgs[id]
	if !ok {
		return shared.ErrNotFound
	}
	org.IsActive = false
	return nil
}

func (m *mockRepository) ListMembers(ctx context.Context, organizationID string) ([]Membership, error) {
	var out []Membership
	for _, mem := range m.memberships {
		if mem.OrganizationID == organizationID && mem.IsActive {
			out = append(out, *mem)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *mockRepository) AddMember(ctx context.Context, mem Membership) (*Membership, error) {
	mem.IsActive = true
	return m.addMembership(mem), nil
}

func (m *mockRepository) UpdateMemberRole(ctx context.Context, organizationID, userID string, role Role) (*Membership, error) {
	mem, ok := m.memberships[membershipKey(userID, organizationID)]
	if !ok || !mem.IsActive {
		return nil, shared.ErrNotFound
	}
	mem.Role = role
	out := *mem
	return &out, nil
}

func (m *mockRepository) DeactivateMember(ctx context.Context, organizationID, userID string) error {
	mem, ok := m.memberships[membershipKey(userID, organizationID)]
	if !ok {
		return shared.ErrNotFound
	}
	mem.IsActive = false
	return nil
}

var _ Repository = (*mockRepository)(nil)
