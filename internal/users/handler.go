package users

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

// Handler exposes tenant-scoped member endpoints.
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

// MountRoutes registers member routes. The caller mounts this under the
// tenant middleware chain.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.mw.WithTenant, h.mw.RequireTenant)

	r.With(h.mw.Require(tenant.ActionRead, tenant.ResourceUsers)).Get("/", h.listMembers)
	r.With(h.mw.RequireSelfOr(tenant.ActionRead, tenant.ResourceUsers, "userID")).Get("/{userID}", h.getMember)
	r.With(h.mw.RequireSelfOr(tenant.ActionUpdate, tenant.ResourceUsers, "userID")).Patch("/{userID}", h.updateProfile)
}

type memberResponse struct {
	UserID    string      `json:"userId"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      tenant.Role `json:"role"`
	JoinedAt  time.Time   `json:"joinedAt"`
}

func toMemberResponse(m Member) memberResponse {
	return memberResponse{
		UserID:    m.UserID,
		Email:     m.Email,
		Username:  m.Username,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Role:      m.Role,
		JoinedAt:  m.JoinedAt,
	}
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	members, err := h.service.ListMembers(r.Context(), tc)
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	member, err := h.service.GetMember(r.Context(), tc, chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get member", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMemberResponse(*member))
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=60"`
	LastName  *string `json:"lastName" validate:"omitempty,max=60"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	tc := tenant.FromContext(r.Context())
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	member, err := h.service.UpdateProfile(r.Context(), tc, chi.URLParam(r, "userID"), UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("update profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toMemberResponse(*member))
}
