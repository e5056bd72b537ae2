package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/automation-global/platform/internal/observability"
	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
)

// Handler exposes the organization and tenant-switching JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        Middleware
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		mw:        mw,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOrganizations)
	r.Post("/", h.createOrganization)

	r.Route("/{organizationID}", func(r chi.Router) {
		// Switch stays outside the tenant gate: the caller has no context in
		// the target organization yet, and resolution failures must surface as
		// the resolver's uniform access denial.
		r.Post("/switch", h.switchContext)

		r.Group(func(r chi.Router) {
			r.Use(h.mw.WithTenant, h.mw.RequireTenant)

			r.With(h.mw.Require(ActionRead, ResourceOrganization)).Get("/", h.getOrganization)
			r.With(h.mw.Require(ActionUpdate, ResourceOrganization)).Patch("/", h.updateOrganization)
			r.With(h.mw.RequireRoles(RoleSuperAdmin, RoleOrgOwner)).Delete("/", h.deactivateOrganization)

			r.Route("/members", func(r chi.Router) {
				r.With(h.mw.Require(ActionRead, ResourceUsers)).Get("/", h.listMembers)
				r.Post("/", h.addMember)
				r.Patch("/{userID}", h.changeMemberRole)
				r.Delete("/{userID}", h.removeMember)
			})
		})
	})
}

type organizationResponse struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Domain           string           `json:"domain,omitempty"`
	Logo             string           `json:"logo,omitempty"`
	Description      string           `json:"description,omitempty"`
	Type             OrgType          `json:"type"`
	SubscriptionPlan SubscriptionPlan `json:"subscriptionPlan"`
	Settings         map[string]any   `json:"settings"`
	IsActive         bool             `json:"isActive"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type membershipResponse struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId"`
	Role           Role      `json:"role"`
	JoinedAt       time.Time `json:"joinedAt"`
	IsActive       bool      `json:"isActive"`
}

type contextResponse struct {
	Organization organizationResponse `json:"organization"`
	Membership   membershipResponse   `json:"membership"`
	Role         Role                 `json:"role"`
	Permissions  map[string]bool      `json:"permissions"`
	Capabilities Capabilities         `json:"capabilities"`
}

func toOrganizationResponse(org Organization) organizationResponse {
	return organizationResponse{
		ID:               org.ID,
		Name:             org.Name,
		Slug:             org.Slug,
		Domain:           org.Domain,
		Logo:             org.Logo,
		Description:      org.Description,
		Type:             org.Type,
		SubscriptionPlan: org.SubscriptionPlan,
		Settings:         org.Settings,
		IsActive:         org.IsActive,
		CreatedAt:        org.CreatedAt,
		UpdatedAt:        org.UpdatedAt,
	}
}

func toMembershipResponse(m Membership) membershipResponse {
	return membershipResponse{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role,
		JoinedAt:       m.JoinedAt,
		IsActive:       m.IsActive,
	}
}

// ToContextResponse shapes a resolved tenant context for API consumers.
func ToContextResponse(tc *Context) any {
	return contextResponse{
		Organization: toOrganizationResponse(tc.Organization),
		Membership:   toMembershipResponse(tc.Membership),
		Role:         tc.Role,
		Permissions:  tc.Permissions,
		Capabilities: tc.Capabilities,
	}
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	userID := CurrentUserID(r)
	if userID == "" {
		httpx.ProblemCode(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required", nil)
		return
	}
	orgs, err := h.service.ListOrganizations(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "list organizations", err)
		return
	}
	type entry struct {
		Organization organizationResponse `json:"organization"`
		Role         Role                 `json:"role"`
		JoinedAt     time.Time            `json:"joinedAt"`
	}
	out := make([]entry, 0, len(orgs))
	for _, uo := range orgs {
		out = append(out, entry{
			Organization: toOrganizationResponse(uo.Organization),
			Role:         uo.Membership.Role,
			JoinedAt:     uo.Membership.JoinedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": out})
}

type createOrganizationRequest struct {
	Name             string `json:"name" validate:"required,min=2,max=120"`
	Slug             string `json:"slug" validate:"omitempty,min=2,max=50"`
	Domain           string `json:"domain" validate:"omitempty,fqdn"`
	Description      string `json:"description" validate:"omitempty,max=500"`
	Type             string `json:"type" validate:"omitempty,oneof=marketing support trading enterprise"`
	SubscriptionPlan string `json:"subscriptionPlan" validate:"omitempty,oneof=starter professional enterprise"`
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	userID := CurrentUserID(r)
	if userID == "" {
		httpx.ProblemCode(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required", nil)
		return
	}
	var req createOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), userID, CreateOrganizationInput{
		Name:             req.Name,
		Slug:             req.Slug,
		Domain:           req.Domain,
		Description:      req.Description,
		Type:             OrgType(req.Type),
		SubscriptionPlan: SubscriptionPlan(req.SubscriptionPlan),
	})
	if err != nil {
		h.fail(w, r, "create organization", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrganizationResponse(*org))
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	httpx.JSON(w, http.StatusOK, toOrganizationResponse(tc.Organization))
}

type updateOrganizationRequest struct {
	Name             *string        `json:"name" validate:"omitempty,min=2,max=120"`
	Domain           *string        `json:"domain"`
	Logo             *string        `json:"logo"`
	Description      *string        `json:"description" validate:"omitempty,max=500"`
	Type             *string        `json:"type" validate:"omitempty,oneof=marketing support trading enterprise"`
	SubscriptionPlan *string        `json:"subscriptionPlan" validate:"omitempty,oneof=starter professional enterprise"`
	Settings         map[string]any `json:"settings"`
}

func (h *Handler) updateOrganization(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	var req updateOrganizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := UpdateOrganizationInput{
		Name:        req.Name,
		Domain:      req.Domain,
		Logo:        req.Logo,
		Description: req.Description,
		Settings:    req.Settings,
	}
	if req.Type != nil {
		t := OrgType(*req.Type)
		in.Type = &t
	}
	if req.SubscriptionPlan != nil {
		p := SubscriptionPlan(*req.SubscriptionPlan)
		in.SubscriptionPlan = &p
	}
	org, err := h.service.UpdateOrganization(r.Context(), tc, in)
	if err != nil {
		h.fail(w, r, "update organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrganizationResponse(*org))
}

func (h *Handler) deactivateOrganization(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	if err := h.service.DeactivateOrganization(r.Context(), tc); err != nil {
		h.fail(w, r, "deactivate organization", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) switchContext(w http.ResponseWriter, r *http.Request) {
	userID := CurrentUserID(r)
	if userID == "" {
		httpx.ProblemCode(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required", nil)
		return
	}
	orgID := chi.URLParam(r, "organizationID")
	tc, err := h.service.SwitchContext(r.Context(), userID, orgID)
	if err != nil {
		h.fail(w, r, "switch context", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetActiveOrg(tc.Organization.ID)
	}
	h.metrics.ContextSwitch()
	httpx.JSON(w, http.StatusOK, ToContextResponse(tc))
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	members, err := h.service.ListMembers(r.Context(), tc)
	if err != nil {
		h.fail(w, r, "list members", err)
		return
	}
	out := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMembershipResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
}

type memberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,oneof=org_owner org_admin org_manager org_user org_viewer"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	member, err := h.service.AddMember(r.Context(), tc, req.UserID, Role(req.Role))
	if err != nil {
		h.fail(w, r, "add member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMembershipResponse(*member))
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=org_owner org_admin org_manager org_user org_viewer"`
}

func (h *Handler) changeMemberRole(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	targetUserID := chi.URLParam(r, "userID")
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	member, err := h.service.ChangeMemberRole(r.Context(), tc, targetUserID, Role(req.Role))
	if err != nil {
		h.fail(w, r, "change member role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMembershipResponse(*member))
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	tc := FromContext(r.Context())
	targetUserID := chi.URLParam(r, "userID")
	if err := h.service.RemoveMember(r.Context(), tc, targetUserID); err != nil {
		h.fail(w, r, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps service errors onto protocol responses, keeping the tenant error
// taxonomy intact.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var denial *DecisionError
	switch {
	case errors.As(err, &denial):
		h.mw.writeDenial(w, r, denial.Decision)
	case errors.Is(err, ErrAccessDenied):
		httpx.ProblemCode(w, http.StatusForbidden, CodeAccessDenied, "access denied", nil)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		if h.logger != nil && !isClientError(err) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func isClientError(err error) bool {
	return errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrDuplicate) ||
		errors.Is(err, httpx.ErrForbidden)
}
