package automations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
)

// Service handles automation business logic. Record-level access depends on
// ownership and visibility, so the permission checks happen here where the
// record is at hand rather than at the route.
type Service struct {
	repo      RepositoryPort
	evaluator *tenant.Evaluator
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService builds a Service instance. The audit logger is optional.
func NewService(repo RepositoryPort, evaluator *tenant.Evaluator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, evaluator: evaluator, audit: audit, logger: logger}
}

// recordConditions feeds the ownership and visibility facts of one record
// into the permission evaluator.
func recordConditions(tc *tenant.Context, a *Automation) map[string]any {
	return map[string]any{
		"owner":  a.OwnerID == tc.UserID,
		"public": a.IsPublic,
	}
}

func deny(tc *tenant.Context, action tenant.Action) error {
	return &tenant.DecisionError{Decision: tenant.Decision{
		Code:    tenant.CodePermissionDenied,
		Role:    tc.Role,
		Missing: &tenant.Pair{Action: action, Resource: tenant.ResourceAutomations},
	}}
}

// List returns the automations the caller may see. Members with unconditional
// read see everything; others are filtered down to what their conditions
// admit, own records for org_user and public ones for org_viewer.
func (s *Service) List(ctx context.Context, tc *tenant.Context) ([]Automation, error) {
	all, err := s.repo.List(ctx, tc.Organization.ID)
	if err != nil {
		return nil, err
	}
	visible := make([]Automation, 0, len(all))
	for i := range all {
		if tc.Can(s.evaluator, tenant.ActionRead, tenant.ResourceAutomations, recordConditions(tc, &all[i])) {
			visible = append(visible, all[i])
		}
	}
	return visible, nil
}

// Get fetches one automation, applying record-level read rules.
func (s *Service) Get(ctx context.Context, tc *tenant.Context, id string) (*Automation, error) {
	a, err := s.repo.Get(ctx, tc.Organization.ID, id)
	if err != nil {
		return nil, err
	}
	if !tc.Can(s.evaluator, tenant.ActionRead, tenant.ResourceAutomations, recordConditions(tc, a)) {
		return nil, deny(tc, tenant.ActionRead)
	}
	return a, nil
}

// CreateInput is the payload for a new automation.
type CreateInput struct {
	Name        string
	Description string
	Trigger     string
	Config      map[string]any
	IsPublic    bool
}

// Create stores a new automation owned by the caller.
func (s *Service) Create(ctx context.Context, tc *tenant.Context, in CreateInput) (*Automation, error) {
	if !tc.Can(s.evaluator, tenant.ActionCreate, tenant.ResourceAutomations, nil) {
		return nil, deny(tc, tenant.ActionCreate)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: automation name required", httpx.ErrValidation)
	}
	a, err := s.repo.Create(ctx, Automation{
		OrganizationID: tc.Organization.ID,
		OwnerID:        tc.UserID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Trigger:        strings.TrimSpace(in.Trigger),
		Status:         StatusDraft,
		Config:         in.Config,
		IsPublic:       in.IsPublic,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, tc, "automation.create", a.ID, map[string]any{"name": a.Name})
	return a, nil
}

// UpdateInput carries optional automation mutations.
type UpdateInput struct {
	Name        *string
	Description *string
	Trigger     *string
	Status      *Status
	Config      map[string]any
	IsPublic    *bool
}

// Update applies the input to an automation the caller may modify.
func (s *Service) Update(ctx context.Context, tc *tenant.Context, id string, in UpdateInput) (*Automation, error) {
	a, err := s.repo.Get(ctx, tc.Organization.ID, id)
	if err != nil {
		return nil, err
	}
	if !tc.Can(s.evaluator, tenant.ActionUpdate, tenant.ResourceAutomations, recordConditions(tc, a)) {
		return nil, deny(tc, tenant.ActionUpdate)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: automation name required", httpx.ErrValidation)
		}
		a.Name = name
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Trigger != nil {
		a.Trigger = strings.TrimSpace(*in.Trigger)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: invalid status %q", httpx.ErrValidation, *in.Status)
		}
		a.Status = *in.Status
	}
	if in.Config != nil {
		a.Config = in.Config
	}
	if in.IsPublic != nil {
		a.IsPublic = *in.IsPublic
	}

	updated, err := s.repo.Update(ctx, *a)
	if err != nil {
		return nil, err
	}
	s.record(ctx, tc, "automation.update", updated.ID, nil)
	return updated, nil
}

// Delete removes an automation the caller may delete.
func (s *Service) Delete(ctx context.Context, tc *tenant.Context, id string) error {
	a, err := s.repo.Get(ctx, tc.Organization.ID, id)
	if err != nil {
		return err
	}
	if !tc.Can(s.evaluator, tenant.ActionDelete, tenant.ResourceAutomations, recordConditions(tc, a)) {
		return deny(tc, tenant.ActionDelete)
	}
	if err := s.repo.Delete(ctx, tc.Organization.ID, id); err != nil {
		return err
	}
	s.record(ctx, tc, "automation.delete", id, map[string]any{"name": a.Name})
	return nil
}

func (s *Service) record(ctx context.Context, tc *tenant.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:        tc.UserID,
		OrganizationID: tc.Organization.ID,
		Action:         action,
		Entity:         "automation",
		EntityID:       entityID,
		Meta:           meta,
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
