package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
	_ "github.com/automation-global/platform/internal/testing/guard"
)

type mockMemberRepo struct {
	members map[string]map[string]*Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[string]map[string]*Member)}
}

func (m *mockMemberRepo) add(orgID string, member Member) {
	if m.members[orgID] == nil {
		m.members[orgID] = make(map[string]*Member)
	}
	m.members[orgID][member.UserID] = &member
}

func (m *mockMemberRepo) ListMembers(ctx context.Context, organizationID string) ([]Member, error) {
	var out []Member
	for _, member := range m.members[organizationID] {
		out = append(out, *member)
	}
	return out, nil
}

func (m *mockMemberRepo) GetMember(ctx context.Context, organizationID, userID string) (*Member, error) {
	member, ok := m.members[organizationID][userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *member
	return &out, nil
}

func (m *mockMemberRepo) UpdateProfile(ctx context.Context, userID, firstName, lastName string) error {
	for _, org := range m.members {
		if member, ok := org[userID]; ok {
			member.FirstName = firstName
			member.LastName = lastName
		}
	}
	return nil
}

func orgContext(orgID string) *tenant.Context {
	return &tenant.Context{
		Organization: tenant.Organization{ID: orgID, IsActive: true},
		UserID:       "caller",
		Role:         tenant.RoleOrgAdmin,
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := newMockMemberRepo()
	repo.add("org-a", Member{
		UserID:    "user-1",
		Email:     "dana@example.com",
		Username:  "dana",
		FirstName: "Dana",
		LastName:  "Klein",
		Role:      "org_user",
		JoinedAt:  time.Now(),
		IsActive:  true,
	})
	svc := NewService(repo)
	ctx := context.Background()

	t.Run("partial update keeps untouched fields", func(t *testing.T) {
		first := "  Daniela "
		member, err := svc.UpdateProfile(ctx, orgContext("org-a"), "user-1", UpdateProfileInput{FirstName: &first})
		require.NoError(t, err)
		assert.Equal(t, "Daniela", member.FirstName)
		assert.Equal(t, "Klein", member.LastName)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		member, err := svc.UpdateProfile(ctx, orgContext("org-a"), "user-1", UpdateProfileInput{})
		require.NoError(t, err)
		assert.Equal(t, "Daniela", member.FirstName)
		assert.Equal(t, "Klein", member.LastName)
	})

	t.Run("target outside the tenant", func(t *testing.T) {
		first := "x"
		_, err := svc.UpdateProfile(ctx, orgContext("org-other"), "user-1", UpdateProfileInput{FirstName: &first})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGetMember(t *testing.T) {
	repo := newMockMemberRepo()
	repo.add("org-a", Member{UserID: "user-1", Email: "dana@example.com", IsActive: true})
	svc := NewService(repo)

	member, err := svc.GetMember(context.Background(), orgContext("org-a"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", member.Email)

	_, err = svc.GetMember(context.Background(), orgContext("org-a"), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
