package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/automation-global/platform/internal/auth"
	"github.com/automation-global/platform/internal/automations"
	"github.com/automation-global/platform/internal/observability"
	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
	"github.com/automation-global/platform/internal/users"
	"github.com/automation-global/platform/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	TenantHandler      *tenant.Handler
	UsersHandler       *users.Handler
	AutomationsHandler *automations.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
			if err != nil {
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not issue token")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/organizations", params.TenantHandler.MountRoutes)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AutomationsHandler != nil {
			r.Route("/automations", params.AutomationsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
