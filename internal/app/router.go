package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-grants/meridian/internal/auth"
	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/feedback"
	"github.com/meridian-grants/meridian/internal/identity"
	"github.com/meridian-grants/meridian/internal/masterdata"
	"github.com/meridian-grants/meridian/internal/observability"
	"github.com/meridian-grants/meridian/internal/projects"
	"github.com/meridian-grants/meridian/internal/proposals"
	"github.com/meridian-grants/meridian/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Tokens            *shared.TokenStore
	AuthHandler       *auth.Handler
	IdentityHandler   *identity.Handler
	ProposalsHandler  *proposals.Handler
	ProjectsHandler   *projects.Handler
	FeedbackHandler   *feedback.Handler
	MasterDataHandler *masterdata.Handler
	AuthzHandler      *authz.Handler
	AuthzMiddleware   authz.Middleware
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tokens:  params.Tokens,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.GuardRoute)

			r.Route("/users", params.IdentityHandler.MountRoutes)
			r.Route("/proposals", params.ProposalsHandler.MountRoutes)
			r.Route("/projects", func(r chi.Router) {
				params.ProjectsHandler.MountRoutes(r)
				params.FeedbackHandler.MountRoutes(r)
			})
			r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
			r.Route("/permissions", params.AuthzHandler.MountRoutes)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
