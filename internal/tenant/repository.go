package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/automation-global/platform/internal/platform/db"
	"github.com/automation-global/platform/internal/shared"
)

// ErrSlugTaken indicates the requested organization slug already exists.
var ErrSlugTaken = errors.New("tenant: slug already taken")

// Repository defines persistence operations for organizations and memberships.
type Repository interface {
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListUserOrganizations(ctx context.Context, userID string) ([]UserOrganization, error)
	GetMembership(ctx context.Context, userID, organizationID string) (*Membership, error)
	CreateOrganization(ctx context.Context, org Organization, ownerUserID string) (*Organization, error)
	UpdateOrganization(ctx context.Context, org Organization) (*Organization, error)
	DeactivateOrganization(ctx context.Context, id string) error
	ListMembers(ctx context.Context, organizationID string) ([]Membership, error)
	AddMember(ctx context.Context, m Membership) (*Membership, error)
	UpdateMemberRole(ctx context.Context, organizationID, userID string, role Role) (*Membership, error)
	DeactivateMember(ctx context.Context, organizationID, userID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const orgColumns = `id, name, slug, COALESCE(domain, ''), COALESCE(logo, ''), COALESCE(description, ''), type, subscription_plan, settings, is_active, created_at, updated_at`

func scanOrganization(row pgx.Row) (*Organization, error) {
	var org Organization
	err := row.Scan(
		&org.ID, &org.Name, &org.Slug, &org.Domain, &org.Logo, &org.Description,
		&org.Type, &org.SubscriptionPlan, &org.Settings, &org.IsActive,
		&org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// GetOrganization fetches an organization by ID.
func (r *PGRepository) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrganization(row)
}

// GetOrganizationBySlug fetches an organization by its unique slug.
func (r *PGRepository) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE slug = $1`, slug)
	return scanOrganization(row)
}

// ListUserOrganizations returns every active organization the user has an
// active membership in, together with that membership.
func (r *PGRepository) ListUserOrganizations(ctx context.Context, userID string) ([]UserOrganization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.slug, COALESCE(o.domain, ''), COALESCE(o.logo, ''), COALESCE(o.description, ''),
		       o.type, o.subscription_plan, o.settings, o.is_active, o.created_at, o.updated_at,
		       m.id, m.organization_id, m.user_id, m.role, m.permissions, COALESCE(m.invited_by::text, ''), m.joined_at, m.is_active
		FROM organization_users m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.is_active AND o.is_active
		ORDER BY m.joined_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserOrganization
	for rows.Next() {
		var uo UserOrganization
		err := rows.Scan(
			&uo.Organization.ID, &uo.Organization.Name, &uo.Organization.Slug,
			&uo.Organization.Domain, &uo.Organization.Logo, &uo.Organization.Description,
			&uo.Organization.Type, &uo.Organization.SubscriptionPlan, &uo.Organization.Settings,
			&uo.Organization.IsActive, &uo.Organization.CreatedAt, &uo.Organization.UpdatedAt,
			&uo.Membership.ID, &uo.Membership.OrganizationID, &uo.Membership.UserID,
			&uo.Membership.Role, &uo.Membership.Permissions, &uo.Membership.InvitedBy,
			&uo.Membership.JoinedAt, &uo.Membership.IsActive,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, uo)
	}
	return out, rows.Err()
}

const membershipColumns = `id, organization_id, user_id, role, permissions, COALESCE(invited_by::text, ''), joined_at, is_active`

func scanMembership(row pgx.Row) (*Membership, error) {
	var m Membership
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Permissions, &m.InvitedBy, &m.JoinedAt, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetMembership returns the user's active membership in the organization.
func (r *PGRepository) GetMembership(ctx context.Context, userID, organizationID string) (*Membership, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM organization_users
		WHERE user_id = $1 AND organization_id = $2 AND is_active`, userID, organizationID)
	return scanMembership(row)
}

// CreateOrganization inserts the organization and its owner membership in one
// transaction so a tenant never exists without an owner.
func (r *PGRepository) CreateOrganization(ctx context.Context, org Organization, ownerUserID string) (*Organization, error) {
	if org.Settings == nil {
		org.Settings = map[string]any{}
	}
	var created *Organization
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO organizations (name, slug, domain, description, type, subscription_plan, settings, is_active)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, TRUE)
			RETURNING `+orgColumns,
			org.Name, org.Slug, org.Domain, org.Description, org.Type, org.SubscriptionPlan, org.Settings)
		var err error
		created, err = scanOrganization(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrSlugTaken
			}
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO organization_users (organization_id, user_id, role, permissions, is_active, joined_at)
			VALUES ($1, $2, $3, '{}', TRUE, $4)`,
			created.ID, ownerUserID, RoleOrgOwner, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateOrganization persists mutable organization fields. Slug is not in the
// update list on purpose: it is immutable once created.
func (r *PGRepository) UpdateOrganization(ctx context.Context, org Organization) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE organizations
		SET name = $2, domain = NULLIF($3, ''), logo = NULLIF($4, ''), description = NULLIF($5, ''),
		    type = $6, subscription_plan = $7, settings = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orgColumns,
		org.ID, org.Name, org.Domain, org.Logo, org.Description,
		org.Type, org.SubscriptionPlan, org.Settings, org.IsActive)
	return scanOrganization(row)
}

// DeactivateOrganization soft-deletes an organization.
func (r *PGRepository) DeactivateOrganization(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE organizations SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListMembers returns all active memberships of the organization.
func (r *PGRepository) ListMembers(ctx context.Context, organizationID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+membershipColumns+`
		FROM organization_users
		WHERE organization_id = $1 AND is_active
		ORDER BY joined_at`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Permissions, &m.InvitedBy, &m.JoinedAt, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember creates an active membership. The unique index on
// (organization_id, user_id) enforces the one-membership-per-pair invariant;
// re-adding a deactivated member reactivates and re-roles the existing row.
func (r *PGRepository) AddMember(ctx context.Context, m Membership) (*Membership, error) {
	if m.Permissions == nil {
		m.Permissions = map[string]bool{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO organization_users (organization_id, user_id, role, permissions, invited_by, is_active, joined_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, TRUE, NOW())
		ON CONFLICT (organization_id, user_id)
		DO UPDATE SET role = EXCLUDED.role, is_active = TRUE
		RETURNING `+membershipColumns,
		m.OrganizationID, m.UserID, m.Role, m.Permissions, m.InvitedBy)
	return scanMembership(row)
}

// UpdateMemberRole changes the role on an active membership.
func (r *PGRepository) UpdateMemberRole(ctx context.Context, organizationID, userID string, role Role) (*Membership, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE organization_users
		SET role = $3
		WHERE organization_id = $1 AND user_id = $2 AND is_active
		RETURNING `+membershipColumns,
		organizationID, userID, role)
	return scanMembership(row)
}

// DeactivateMember removes a member by flipping is_active.
func (r *PGRepository) DeactivateMember(ctx context.Context, organizationID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organization_users
		SET is_active = FALSE
		WHERE organization_id = $1 AND user_id = $2 AND is_active`, organizationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
