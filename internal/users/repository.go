package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
)

// RepositoryPort defines tenant-scoped data access for members.
type RepositoryPort interface {
	ListMembers(ctx context.Context, organizationID string) ([]Member, error)
	GetMember(ctx context.Context, organizationID, userID string) (*Member, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberQuery = `
	SELECT u.id, u.email, u.username, u.first_name, u.last_name, m.role, m.joined_at, m.is_active
	FROM users u
	JOIN organization_users m ON m.user_id = u.id`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	var role string
	err := row.Scan(&m.UserID, &m.Email, &m.Username, &m.FirstName, &m.LastName, &role, &m.JoinedAt, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: scan member: %w", err)
	}
	m.Role = tenant.Role(role)
	return &m, nil
}

// ListMembers returns all active members of an organization.
func (r *Repository) ListMembers(ctx context.Context, organizationID string) ([]Member, error) {
	rows, err := r.pool.Query(ctx, memberQuery+`
		WHERE m.organization_id = $1 AND m.is_active = TRUE AND u.is_active = TRUE
		ORDER BY m.joined_at`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("users: list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// GetMember returns one member of an organization.
func (r *Repository) GetMember(ctx context.Context, organizationID, userID string) (*Member, error) {
	row := r.pool.QueryRow(ctx, memberQuery+`
		WHERE m.organization_id = $1 AND m.user_id = $2 AND m.is_active = TRUE`, organizationID, userID)
	return scanMember(row)
}

// UpdateProfile changes the user's name fields. Profile data lives on the
// user record, so the change is visible in every organization.
func (r *Repository) UpdateProfile(ctx context.Context, userID, firstName, lastName string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, updated_at = now()
		WHERE id = $1 AND is_active = TRUE`, userID, firstName, lastName)
	if err != nil {
		return fmt.Errorf("users: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
