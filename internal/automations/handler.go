package automations

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
)

// Handler exposes automation endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        tenant.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenant.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers automation routes under the tenant middleware chain.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.mw.WithTenant, h.mw.RequireTenant)

	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{automationID}", h.get)
	r.Patch("/{automationID}", h.update)
	r.Delete("/{automationID}", h.remove)
}

type automationResponse struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     string         `json:"trigger,omitempty"`
	Status      Status         `json:"status"`
	Config      map[string]any `json:"config,omitempty"`
	IsPublic    bool           `json:"isPublic"`
	RunCount    int64          `json:"runCount"`
	LastRunAt   *time.Time     `json:"lastRunAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func toResponse(a Automation) automationResponse {
	return automationResponse{
		ID:          a.ID,
		OwnerID:     a.OwnerID,
		Name:        a.Name,
		Description: a.Description,
		Trigger:     a.Trigger,
		Status:      a.Status,
		Config:      a.Config,
		IsPublic:    a.IsPublic,
		RunCount:    a.RunCount,
		LastRunAt:   a.LastRunAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	items, err := h.service.List(r.Context(), tc)
	if err != nil {
		h.fail(w, "list automations", err)
		return
	}
	out := make([]automationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"automations": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	a, err := h.service.Get(r.Context(), tc, chi.URLParam(r, "automationID"))
	if err != nil {
		h.fail(w, "get automation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*a))
}

type createRequest struct {
	Name        string         `json:"name" validate:"required,min=2,max=120"`
	Description string         `json:"description" validate:"omitempty,max=500"`
	Trigger     string         `json:"trigger" validate:"omitempty,max=120"`
	Config      map[string]any `json:"config"`
	IsPublic    bool           `json:"isPublic"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	a, err := h.service.Create(r.Context(), tc, CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Config:      req.Config,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		h.fail(w, "create automation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*a))
}

type updateRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=2,max=120"`
	Description *string        `json:"description" validate:"omitempty,max=500"`
	Trigger     *string        `json:"trigger" validate:"omitempty,max=120"`
	Status      *string        `json:"status" validate:"omitempty,oneof=draft enabled disabled"`
	Config      map[string]any `json:"config"`
	IsPublic    *bool          `json:"isPublic"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Config:      req.Config,
		IsPublic:    req.IsPublic,
	}
	if req.Status != nil {
		st := Status(*req.Status)
		in.Status = &st
	}
	a, err := h.service.Update(r.Context(), tc, chi.URLParam(r, "automationID"), in)
	if err != nil {
		h.fail(w, "update automation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*a))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), tc, chi.URLParam(r, "automationID")); err != nil {
		h.fail(w, "delete automation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var denial *tenant.DecisionError
	switch {
	case errors.As(err, &denial):
		httpx.ProblemCode(w, http.StatusForbidden, denial.Decision.Code, "insufficient permissions", denial.Decision)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
