package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
	_ "github.com/automation-global/platform/internal/testing/guard"
)

type mockUserRepo struct {
	usersByEmail map[string]*User
	usersByID    map[string]*User
	nextID       int

	findError error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByEmail: make(map[string]*User),
		usersByID:    make(map[string]*User),
		nextID:       1,
	}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	u, ok := m.usersByEmail[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*User, error) {
	u, ok := m.usersByID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u User) (*User, error) {
	email := strings.ToLower(u.Email)
	if _, ok := m.usersByEmail[email]; ok {
		return nil, shared.ErrEmailTaken
	}
	for _, existing := range m.usersByID {
		if existing.Username == u.Username {
			return nil, shared.ErrUsernameTaken
		}
	}
	u.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
	m.nextID++
	u.Email = email
	u.IsActive = true
	m.usersByEmail[email] = &u
	m.usersByID[u.ID] = &u
	out := u
	return &out, nil
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id string) error {
	return nil
}

type mockProvisioner struct {
	orgs      map[string]tenant.Organization
	failSlugs map[string]bool
	nextID    int
}

func newMockProvisioner() *mockProvisioner {
	return &mockProvisioner{orgs: make(map[string]tenant.Organization), failSlugs: make(map[string]bool), nextID: 1}
}

func (m *mockProvisioner) CreateOrganization(ctx context.Context, org tenant.Organization, ownerUserID string) (*tenant.Organization, error) {
	if m.failSlugs[org.Slug] {
		return nil, tenant.ErrSlugTaken
	}
	org.ID = fmt.Sprintf("org-%d", m.nextID)
	m.nextID++
	org.IsActive = true
	m.orgs[org.Slug] = org
	out := org
	return &out, nil
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password string, active bool) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := repo.CreateUser(context.Background(), User{
		Email:        email,
		Username:     strings.Split(email, "@")[0],
		PasswordHash: string(hash),
	})
	require.NoError(t, err)
	if !active {
		repo.usersByEmail[u.Email].IsActive = false
	}
	return u
}

func TestAuthenticate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewService(repo, newMockProvisioner(), nil)
	ctx := context.Background()

	seedUser(t, repo, "dana@example.com", "s3cret-pass", true)
	seedUser(t, repo, "gone@example.com", "s3cret-pass", false)

	t.Run("valid credentials", func(t *testing.T) {
		u, err := svc.Authenticate(ctx, "dana@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, "dana@example.com", u.Email)
	})

	t.Run("all failures look alike", func(t *testing.T) {
		cases := []struct{ email, pass string }{
			{"dana@example.com", "not-it"},
			{"nobody@example.com", "s3cret-pass"},
			{"gone@example.com", "s3cret-pass"},
		}
		for _, tc := range cases {
			_, err := svc.Authenticate(ctx, tc.email, tc.pass)
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials, tc.email)
		}
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user and workspace", func(t *testing.T) {
		repo := newMockUserRepo()
		orgs := newMockProvisioner()
		svc := NewService(repo, orgs, nil)

		user, org, err := svc.Register(ctx, RegisterInput{
			Email:    "Dana@Example.com",
			Username: "dana",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)
		assert.Equal(t, "dana@example.com", user.Email)
		assert.Equal(t, "dana workspace", org.Name)
		assert.Equal(t, "dana-workspace", org.Slug)

		// the stored hash verifies against the password
		stored := repo.usersByID[user.ID]
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))
	})

	t.Run("explicit organization name", func(t *testing.T) {
		repo := newMockUserRepo()
		orgs := newMockProvisioner()
		svc := NewService(repo, orgs, nil)

		_, org, err := svc.Register(ctx, RegisterInput{
			Email:            "lee@example.com",
			Username:         "lee",
			Password:         "s3cret-pass",
			OrganizationName: "Lee Media GmbH",
		})
		require.NoError(t, err)
		assert.Equal(t, "lee-media-gmbh", org.Slug)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := NewService(repo, newMockProvisioner(), nil)
		seedUser(t, repo, "dana@example.com", "whatever1", true)

		_, _, err := svc.Register(ctx, RegisterInput{Email: "dana@example.com", Username: "dana2", Password: "s3cret-pass"})
		assert.ErrorIs(t, err, shared.ErrEmailTaken)
	})

	t.Run("slug collision retries with suffix", func(t *testing.T) {
		repo := newMockUserRepo()
		orgs := newMockProvisioner()
		orgs.failSlugs["dana-workspace"] = true
		svc := NewService(repo, orgs, nil)

		user, org, err := svc.Register(ctx, RegisterInput{Email: "dana@example.com", Username: "dana", Password: "s3cret-pass"})
		require.NoError(t, err)
		assert.Equal(t, "dana-workspace-"+user.ID[:8], org.Slug)
	})
}
