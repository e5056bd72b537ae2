package auth

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

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tenants        *tenant.Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tenants *tenant.Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		tenants:        tenants,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

type registerRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Username         string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password         string `json:"password" validate:"required,min=8,max=128"`
	FirstName        string `json:"firstName" validate:"omitempty,max=60"`
	LastName         string `json:"lastName" validate:"omitempty,max=60"`
	OrganizationName string `json:"organizationName" validate:"omitempty,min=2,max=120"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, org, err := h.service.Register(r.Context(), RegisterInput{
		Email:            req.Email,
		Username:         req.Username,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrEmailTaken):
			httpx.Problem(w, http.StatusConflict, "Conflict", "email already registered")
		case errors.Is(err, shared.ErrUsernameTaken):
			httpx.Problem(w, http.StatusConflict, "Conflict", "username already taken")
		default:
			h.logger.Error("register", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}

	h.startSession(w, r, user, org.ID)
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user":         toUserResponse(*user),
		"organization": map[string]any{"id": org.ID, "name": org.Name, "slug": org.Slug},
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}

	defaultOrg := ""
	if orgID, err := h.tenants.Resolver().DefaultOrganization(r.Context(), user.ID); err == nil {
		defaultOrg = orgID
	}
	h.startSession(w, r, user, defaultOrg)
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserResponse(*user)})
}

// startSession rotates the session ID and binds it to the user. Rotation on
// login prevents session fixation.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user *User, activeOrg string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		return
	}
	if err := h.sessionManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate session", slog.Any("error", err))
	}
	sess.SetUser(user.ID)
	sess.SetActiveOrg(activeOrg)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := tenant.CurrentUserID(r)
	if userID == "" {
		httpx.ProblemCode(w, http.StatusUnauthorized, tenant.CodeAuthRequired, "authentication required", nil)
		return
	}
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	orgs, err := h.tenants.ListOrganizations(r.Context(), userID)
	if err != nil {
		h.logger.Error("list organizations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	type orgEntry struct {
		ID   string      `json:"id"`
		Name string      `json:"name"`
		Slug string      `json:"slug"`
		Role tenant.Role `json:"role"`
	}
	out := make([]orgEntry, 0, len(orgs))
	for _, uo := range orgs {
		out = append(out, orgEntry{ID: uo.Organization.ID, Name: uo.Organization.Name, Slug: uo.Organization.Slug, Role: uo.Membership.Role})
	}

	resp := map[string]any{
		"user":          toUserResponse(*user),
		"organizations": out,
	}
	if tc := tenant.FromContext(r.Context()); tc != nil {
		resp["context"] = tenant.ToContextResponse(tc)
	}
	httpx.JSON(w, http.StatusOK, resp)
}
