package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/automation-global/platform/internal/platform/httpx"
	"github.com/automation-global/platform/internal/shared"
)

// OrgHeader is the request header carrying the target organization ID.
const OrgHeader = "X-Organization-ID"

type tenantContextKey struct{}

// ContextWith attaches the resolved tenant context to the request context.
func ContextWith(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// FromContext extracts the tenant context, nil when none was resolved.
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(tenantContextKey{}).(*Context)
	return tc
}

// Middleware wires tenant resolution and authorization gates into chi.
type Middleware struct {
	Resolver *Resolver
	Gates    *Gates
	Logger   *slog.Logger
}

// CurrentUserID returns the authenticated caller from the session, empty when
// unauthenticated.
func CurrentUserID(r *http.Request) string {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return sess.User()
}

// organizationID extracts the target organization from the request, trying
// header, query parameter, URL parameter and session default in that order.
func organizationID(r *http.Request) string {
	if id := r.Header.Get(OrgHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("org_id"); id != "" {
		return id
	}
	if id := chi.URLParam(r, "organizationID"); id != "" {
		return id
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.ActiveOrg()
	}
	return ""
}

// WithTenant resolves the tenant context for authenticated requests and
// attaches it. Requests without a resolvable tenant continue without one;
// gates downstream decide whether that is acceptable.
func (m Middleware) WithTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := CurrentUserID(r)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		orgID := organizationID(r)
		if orgID == "" {
			fallback, err := m.Resolver.DefaultOrganization(r.Context(), userID)
			if err != nil {
				if m.Logger != nil && !errors.Is(err, shared.ErrNotFound) {
					m.Logger.Warn("default organization lookup", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			orgID = fallback
		}

		tc, err := m.Resolver.Resolve(r.Context(), userID, orgID)
		if err != nil {
			// Stale session default or revoked membership; downstream gates
			// will deny anything tenant-scoped.
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWith(r.Context(), tc)))
	})
}

// RequireTenant rejects requests that did not resolve a tenant context.
func (m Middleware) RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUserID(r) == "" {
			httpx.ProblemCode(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required", nil)
			return
		}
		if FromContext(r.Context()) == nil {
			httpx.ProblemCode(w, http.StatusForbidden, CodeTenantRequired, "active organization required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require guards a route with a single permission.
func (m Middleware) Require(action Action, resource Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := CurrentUserID(r)
			tc := FromContext(r.Context())
			d := m.Gates.RequirePermission(userID, tc, action, resource, selfExtra(r, userID))
			if !d.Allowed {
				m.writeDenial(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyOf guards a route with OR logic over permission pairs.
func (m Middleware) RequireAnyOf(pairs ...Pair) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := CurrentUserID(r)
			d := m.Gates.RequireAny(userID, FromContext(r.Context()), pairs, selfExtra(r, userID))
			if !d.Allowed {
				m.writeDenial(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllOf guards a route with AND logic over permission pairs.
func (m Middleware) RequireAllOf(pairs ...Pair) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := CurrentUserID(r)
			d := m.Gates.RequireAll(userID, FromContext(r.Context()), pairs, selfExtra(r, userID))
			if !d.Allowed {
				m.writeDenial(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOr lets a caller operate on their own user resource, or anyone
// holding the given permission operate on others. The target user is read
// from the named URL parameter.
func (m Middleware) RequireSelfOr(action Action, resource Resource, userParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := CurrentUserID(r)
			target := chi.URLParam(r, userParam)
			// The non-self path feeds no extra conditions, so role-conditioned
			// table entries like org_manager's update:users {role: org_user}
			// never match here; only unconditioned grants pass this gate.
			d := m.Gates.RequireSelfOrPermission(userID, target, FromContext(r.Context()), action, resource, nil)
			if !d.Allowed {
				m.writeDenial(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles admits only the listed roles, with no hierarchy inference.
func (m Middleware) RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := m.Gates.RequireRole(CurrentUserID(r), FromContext(r.Context()), roles...)
			if !d.Allowed {
				m.writeDenial(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// selfExtra feeds the {self: true} condition when the route targets the
// caller's own user id.
func selfExtra(r *http.Request, userID string) map[string]any {
	target := chi.URLParam(r, "userID")
	if target == "" || userID == "" {
		return nil
	}
	return map[string]any{"self": target == userID}
}

func (m Middleware) writeDenial(w http.ResponseWriter, r *http.Request, d Decision) {
	status := http.StatusForbidden
	detail := "insufficient permissions"
	switch d.Code {
	case CodeAuthRequired:
		status = http.StatusUnauthorized
		detail = "authentication required"
	case CodeTenantRequired:
		detail = "active organization required"
	}
	if m.Logger != nil {
		m.Logger.Warn("authorization denied",
			slog.String("code", d.Code),
			slog.String("role", d.Role.String()),
			slog.String("path", r.URL.Path),
		)
	}
	httpx.ProblemCode(w, status, d.Code, detail, d)
}
