package authz

import (
	"fmt"
	"net/http"
	"strings"

	"log/slog"

	"github.com/meridian-grants/meridian/internal/observability"
	"github.com/meridian-grants/meridian/internal/platform/httpx"
	"github.com/meridian-grants/meridian/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Gate    *Gate
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequireAny ensures the current principal has at least one of the
// required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(perms, func(w http.ResponseWriter, r *http.Request, id int64) (bool, error) {
		return m.Gate.HasAnyPermission(r.Context(), id, perms)
	})
}

// RequireAll ensures the current principal has every required
// permission.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(perms, func(w http.ResponseWriter, r *http.Request, id int64) (bool, error) {
		return m.Gate.HasAllPermissions(r.Context(), id, perms)
	})
}

func (m Middleware) require(perms []Permission, check func(http.ResponseWriter, *http.Request, int64) (bool, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principalID, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			allowed, err := check(w, r, principalID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authorization check", slog.Int64("principal_id", principalID), slog.Any("error", err))
				}
				m.Metrics.AuthzDecision("error")
				httpx.RespondError(w, err)
				return
			}
			if allowed {
				m.Metrics.AuthzDecision("allow")
				next.ServeHTTP(w, r)
				return
			}
			m.Metrics.AuthzDecision("deny")
			missing, merr := m.Gate.Missing(r.Context(), principalID, perms)
			if merr != nil {
				httpx.RespondError(w, merr)
				return
			}
			httpx.RespondError(w, fmt.Errorf("missing permission(s) %s: %w", joinPermissions(missing), shared.ErrUnauthorized))
		})
	}
}

// GuardRoute enforces the gate's static route table: listed routes
// require their permissions, unlisted ones pass through.
func (m Middleware) GuardRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		allowed, err := m.Gate.CanAccessRoute(r.Context(), principalID, r.URL.Path)
		if err != nil {
			m.Metrics.AuthzDecision("error")
			httpx.RespondError(w, err)
			return
		}
		if !allowed {
			m.Metrics.AuthzDecision("deny")
			httpx.RespondError(w, fmt.Errorf("route %s: %w", r.URL.Path, shared.ErrUnauthorized))
			return
		}
		m.Metrics.AuthzDecision("allow")
		next.ServeHTTP(w, r)
	})
}

func joinPermissions(perms []Permission) string {
	if len(perms) == 0 {
		return "(none)"
	}
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
