package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automation-global/platform/internal/shared"
	_ "github.com/automation-global/platform/internal/testing/guard"
)

func newTestResolver(repo Repository) *Resolver {
	return NewResolver(repo, NewEvaluator(nil, nil), nil)
}

func seedOrgWithMember(repo *mockRepository, orgID, userID string, role Role) {
	repo.addOrg(Organization{ID: orgID, Name: orgID, Slug: orgID, Type: OrgTypeMarketing, SubscriptionPlan: PlanStarter, IsActive: true})
	repo.addMembership(Membership{OrganizationID: orgID, UserID: userID, Role: role, IsActive: true})
}

func TestResolveBuildsContext(t *testing.T) {
	repo := newMockRepository()
	seedOrgWithMember(repo, "org-a", "user-1", RoleOrgManager)
	resolver := newTestResolver(repo)

	tc, err := resolver.Resolve(context.Background(), "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, "org-a", tc.OrganizationID())
	assert.Equal(t, "user-1", tc.UserID)
	assert.Equal(t, RoleOrgManager, tc.Role)
	assert.True(t, tc.Permissions[permKey(ActionRead, ResourceUsers)])
	assert.False(t, tc.Permissions[permKey(ActionDelete, ResourceOrganization)])
	assert.Equal(t, LevelManager, tc.Capabilities.Level)
}

func TestResolveDenialsAreIndistinguishable(t *testing.T) {
	repo := newMockRepository()
	seedOrgWithMember(repo, "org-a", "user-1", RoleOrgUser)

	// inactive organization with an otherwise valid membership
	repo.addOrg(Organization{ID: "org-dead", Slug: "org-dead", IsActive: false})
	repo.addMembership(Membership{OrganizationID: "org-dead", UserID: "user-1", Role: RoleOrgUser, IsActive: true})

	// deactivated membership in an active organization
	repo.addOrg(Organization{ID: "org-b", Slug: "org-b", IsActive: true})
	repo.addMembership(Membership{OrganizationID: "org-b", UserID: "user-1", Role: RoleOrgUser, IsActive: false})

	resolver := newTestResolver(repo)
	ctx := context.Background()

	cases := []struct {
		name    string
		userID  string
		orgID   string
		inject  func()
		restore func()
	}{
		{name: "no membership at all", userID: "user-1", orgID: "org-nope"},
		{name: "organization inactive", userID: "user-1", orgID: "org-dead"},
		{name: "membership deactivated", userID: "user-1", orgID: "org-b"},
		{name: "empty user", userID: "", orgID: "org-a"},
		{name: "empty organization", userID: "user-1", orgID: ""},
		{
			name: "repository failure", userID: "user-1", orgID: "org-a",
			inject:  func() { repo.getMembershipError = errors.New("connection refused") },
			restore: func() { repo.getMembershipError = nil },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.inject != nil {
				tc.inject()
				defer tc.restore()
			}
			got, err := resolver.Resolve(ctx, tc.userID, tc.orgID)
			assert.Nil(t, got)
			// every failure mode surfaces the same sentinel, nothing else
			assert.ErrorIs(t, err, ErrAccessDenied)
			assert.EqualError(t, err, ErrAccessDenied.Error())
		})
	}
}

func TestResolveEmptyRoleFallsBackToViewer(t *testing.T) {
	repo := newMockRepository()
	repo.addOrg(Organization{ID: "org-a", Slug: "org-a", IsActive: true})
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "user-1", Role: "", IsActive: true})
	resolver := newTestResolver(repo)

	tc, err := resolver.Resolve(context.Background(), "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, RoleOrgViewer, tc.Role)
}

func TestResolveKeepsUnknownRole(t *testing.T) {
	repo := newMockRepository()
	repo.addOrg(Organization{ID: "org-a", Slug: "org-a", IsActive: true})
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "user-1", Role: Role("legacy_admin"), IsActive: true})
	resolver := newTestResolver(repo)

	tc, err := resolver.Resolve(context.Background(), "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, Role("legacy_admin"), tc.Role)
	// the evaluator fails closed on the unknown role
	assert.False(t, tc.Can(NewEvaluator(nil, nil), ActionRead, ResourceOrganization, nil))
	assert.Empty(t, tc.Permissions)
}

func TestSwitchContextReflectsRoleChange(t *testing.T) {
	repo := newMockRepository()
	seedOrgWithMember(repo, "org-a", "user-1", RoleOrgAdmin)
	resolver := newTestResolver(repo)
	ctx := context.Background()

	before, err := resolver.Resolve(ctx, "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, RoleOrgAdmin, before.Role)

	_, err = repo.UpdateMemberRole(ctx, "org-a", "user-1", RoleOrgViewer)
	require.NoError(t, err)

	after, err := resolver.SwitchContext(ctx, "user-1", "org-a")
	require.NoError(t, err)
	assert.Equal(t, RoleOrgViewer, after.Role)
	assert.False(t, after.Permissions[permKey(ActionCreate, ResourceUsers)])
	// the earlier snapshot is untouched
	assert.Equal(t, RoleOrgAdmin, before.Role)
}

func TestSwitchContextRevokedMembership(t *testing.T) {
	repo := newMockRepository()
	seedOrgWithMember(repo, "org-a", "user-1", RoleOrgUser)
	resolver := newTestResolver(repo)
	ctx := context.Background()

	_, err := resolver.SwitchContext(ctx, "user-1", "org-a")
	require.NoError(t, err)

	require.NoError(t, repo.DeactivateMember(ctx, "org-a", "user-1"))

	_, err = resolver.SwitchContext(ctx, "user-1", "org-a")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDefaultOrganizationPicksOldestMembership(t *testing.T) {
	repo := newMockRepository()
	now := time.Now().UTC()
	repo.addOrg(Organization{ID: "org-new", Slug: "org-new", IsActive: true})
	repo.addOrg(Organization{ID: "org-old", Slug: "org-old", IsActive: true})
	repo.addMembership(Membership{OrganizationID: "org-new", UserID: "user-1", Role: RoleOrgOwner, IsActive: true, JoinedAt: now})
	repo.addMembership(Membership{OrganizationID: "org-old", UserID: "user-1", Role: RoleOrgUser, IsActive: true, JoinedAt: now.Add(-24 * time.Hour)})
	resolver := newTestResolver(repo)

	orgID, err := resolver.DefaultOrganization(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-old", orgID)
}

func TestDefaultOrganizationNoMemberships(t *testing.T) {
	resolver := newTestResolver(newMockRepository())
	_, err := resolver.DefaultOrganization(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
