package automations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/automation-global/platform/internal/shared"
)

// RepositoryPort defines data access for automations.
type RepositoryPort interface {
	List(ctx context.Context, organizationID string) ([]Automation, error)
	Get(ctx context.Context, organizationID, id string) (*Automation, error)
	Create(ctx context.Context, a Automation) (*Automation, error)
	Update(ctx context.Context, a Automation) (*Automation, error)
	Delete(ctx context.Context, organizationID, id string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const automationColumns = `id, organization_id, owner_id, name, description, trigger, status, config, is_public, run_count, last_run_at, created_at, updated_at`

func scanAutomation(row pgx.Row) (*Automation, error) {
	var a Automation
	var status string
	err := row.Scan(&a.ID, &a.OrganizationID, &a.OwnerID, &a.Name, &a.Description, &a.Trigger, &status, &a.Config, &a.IsPublic, &a.RunCount, &a.LastRunAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("automations: scan: %w", err)
	}
	a.Status = Status(status)
	return &a, nil
}

// List returns all automations in an organization, newest first.
func (r *Repository) List(ctx context.Context, organizationID string) ([]Automation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+automationColumns+`
		FROM automations WHERE organization_id = $1 ORDER BY created_at DESC`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("automations: list: %w", err)
	}
	defer rows.Close()

	var out []Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Get fetches one automation scoped to the organization.
func (r *Repository) Get(ctx context.Context, organizationID, id string) (*Automation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+automationColumns+`
		FROM automations WHERE organization_id = $1 AND id = $2`, organizationID, id)
	return scanAutomation(row)
}

// Create inserts a new automation.
func (r *Repository) Create(ctx context.Context, a Automation) (*Automation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO automations (organization_id, owner_id, name, description, trigger, status, config, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+automationColumns,
		a.OrganizationID, a.OwnerID, a.Name, a.Description, a.Trigger, string(a.Status), a.Config, a.IsPublic,
	)
	return scanAutomation(row)
}

// Update persists mutable fields of an automation.
func (r *Repository) Update(ctx context.Context, a Automation) (*Automation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE automations
		SET name = $3, description = $4, trigger = $5, status = $6, config = $7, is_public = $8, updated_at = now()
		WHERE organization_id = $1 AND id = $2
		RETURNING `+automationColumns,
		a.OrganizationID, a.ID, a.Name, a.Description, a.Trigger, string(a.Status), a.Config, a.IsPublic,
	)
	return scanAutomation(row)
}

// Delete removes an automation.
func (r *Repository) Delete(ctx context.Context, organizationID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM automations WHERE organization_id = $1 AND id = $2`, organizationID, id)
	if err != nil {
		return fmt.Errorf("automations: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
