package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automation-global/platform/internal/platform/httpx"
)

func newTestService(repo *mockRepository) *Service {
	ev := NewEvaluator(nil, nil)
	resolver := NewResolver(repo, ev, nil)
	gates := NewGates(ev, nil)
	return NewService(repo, resolver, ev, gates, nil, nil)
}

func TestCreateOrganization(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "user-1", CreateOrganizationInput{Name: "Acme Marketing"})
	require.NoError(t, err)
	assert.Equal(t, "acme-marketing", org.Slug)
	assert.Equal(t, OrgTypeMarketing, org.Type)
	assert.Equal(t, PlanStarter, org.SubscriptionPlan)

	// the creator became org_owner
	mem, err := repo.GetMembership(ctx, "user-1", org.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleOrgOwner, mem.Role)

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := svc.CreateOrganization(ctx, "user-2", CreateOrganizationInput{Name: "Acme Marketing"})
		assert.ErrorIs(t, err, httpx.ErrDuplicate)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := svc.CreateOrganization(ctx, "user-1", CreateOrganizationInput{Name: "   "})
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("unsluggable name", func(t *testing.T) {
		_, err := svc.CreateOrganization(ctx, "user-1", CreateOrganizationInput{Name: "!!!"})
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})
}

func TestUpdateOrganizationIgnoresSlug(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	org, err := svc.CreateOrganization(ctx, "user-1", CreateOrganizationInput{Name: "Acme"})
	require.NoError(t, err)

	tc, err := svc.Resolver().Resolve(ctx, "user-1", org.ID)
	require.NoError(t, err)

	name := "Acme Worldwide"
	updated, err := svc.UpdateOrganization(ctx, tc, UpdateOrganizationInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Worldwide", updated.Name)
	assert.Equal(t, "acme", updated.Slug)
}

func memberContext(t *testing.T, svc *Service, userID, orgID string) *Context {
	t.Helper()
	tc, err := svc.Resolver().Resolve(context.Background(), userID, orgID)
	require.NoError(t, err)
	return tc
}

func TestAddMember(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedOrgWithMember(repo, "org-a", "owner", RoleOrgOwner)
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "manager", Role: RoleOrgManager, IsActive: true})

	t.Run("owner adds an admin", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		mem, err := svc.AddMember(ctx, tc, "newcomer", RoleOrgAdmin)
		require.NoError(t, err)
		assert.Equal(t, RoleOrgAdmin, mem.Role)
		assert.Equal(t, "owner", mem.InvitedBy)
	})

	t.Run("manager adds an org_user", func(t *testing.T) {
		tc := memberContext(t, svc, "manager", "org-a")
		mem, err := svc.AddMember(ctx, tc, "worker", RoleOrgUser)
		require.NoError(t, err)
		assert.Equal(t, RoleOrgUser, mem.Role)
	})

	t.Run("manager cannot add an org_admin", func(t *testing.T) {
		tc := memberContext(t, svc, "manager", "org-a")
		_, err := svc.AddMember(ctx, tc, "impostor", RoleOrgAdmin)
		var denial *DecisionError
		require.ErrorAs(t, err, &denial)
		assert.Equal(t, CodePermissionDenied, denial.Decision.Code)
	})

	t.Run("nobody grants their own role", func(t *testing.T) {
		tc := memberContext(t, svc, "manager", "org-a")
		_, err := svc.AddMember(ctx, tc, "peer", RoleOrgManager)
		assert.Error(t, err)
	})

	t.Run("super_admin is never assignable", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		_, err := svc.AddMember(ctx, tc, "root", RoleSuperAdmin)
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		_, err := svc.AddMember(ctx, tc, "x", Role("org_root"))
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})
}

func TestChangeMemberRole(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedOrgWithMember(repo, "org-a", "owner", RoleOrgOwner)
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "admin", Role: RoleOrgAdmin, IsActive: true})
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "worker", Role: RoleOrgUser, IsActive: true})

	t.Run("owner promotes a user", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		mem, err := svc.ChangeMemberRole(ctx, tc, "worker", RoleOrgManager)
		require.NoError(t, err)
		assert.Equal(t, RoleOrgManager, mem.Role)
	})

	t.Run("own role is off limits", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		_, err := svc.ChangeMemberRole(ctx, tc, "owner", RoleOrgAdmin)
		assert.ErrorIs(t, err, httpx.ErrForbidden)
	})

	t.Run("admin cannot manage a peer admin", func(t *testing.T) {
		repo.addMembership(Membership{OrganizationID: "org-a", UserID: "admin2", Role: RoleOrgAdmin, IsActive: true})
		tc := memberContext(t, svc, "admin", "org-a")
		_, err := svc.ChangeMemberRole(ctx, tc, "admin2", RoleOrgUser)
		assert.ErrorIs(t, err, httpx.ErrForbidden)
	})

	t.Run("unknown member", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		_, err := svc.ChangeMemberRole(ctx, tc, "ghost", RoleOrgUser)
		assert.Error(t, err)
	})
}

func TestRemoveMember(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedOrgWithMember(repo, "org-a", "owner", RoleOrgOwner)
	repo.addMembership(Membership{OrganizationID: "org-a", UserID: "worker", Role: RoleOrgUser, IsActive: true})

	t.Run("self removal blocked", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		err := svc.RemoveMember(ctx, tc, "owner")
		assert.ErrorIs(t, err, httpx.ErrForbidden)
	})

	t.Run("owner removes a member", func(t *testing.T) {
		tc := memberContext(t, svc, "owner", "org-a")
		require.NoError(t, svc.RemoveMember(ctx, tc, "worker"))

		// the membership is deactivated, not deleted
		mem := repo.memberships[membershipKey("worker", "org-a")]
		require.NotNil(t, mem)
		assert.False(t, mem.IsActive)
	})
}

func TestServiceSwitchContext(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedOrgWithMember(repo, "org-a", "user-1", RoleOrgOwner)
	seedOrgWithMember(repo, "org-b", "user-1", RoleOrgViewer)

	tc, err := svc.SwitchContext(ctx, "user-1", "org-b")
	require.NoError(t, err)
	assert.Equal(t, "org-b", tc.OrganizationID())
	assert.Equal(t, RoleOrgViewer, tc.Role)

	_, err = svc.SwitchContext(ctx, "user-1", "org-unknown")
	assert.ErrorIs(t, err, ErrAccessDenied)
}
