package authz

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-grants/meridian/internal/platform/httpx"
	"github.com/meridian-grants/meridian/internal/shared"
)

// Handler exposes permission administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), mw: mw}
}

// MountRoutes registers permission administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(PermAdminPermissions))
		r.Get("/", h.listCatalog)
		r.Get("/overrides/{principalID}", h.listOverrides)
		r.Post("/overrides", h.setOverride)
		r.Post("/cache/reset", h.resetCache)
	})
}

type setOverrideRequest struct {
	PrincipalID int64  `json:"principal_id" validate:"required,gt=0"`
	Permission  string `json:"permission" validate:"required"`
	Granted     *bool  `json:"granted" validate:"required"`
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"general":        GeneralScopes(),
		"users":          UserScopes(),
		"proposals":      ProposalScopes(),
		"projects":       ProjectScopes(),
		"finance":        FinanceScopes(),
		"administration": AdminScopes(),
		"reporting":      ReportScopes(),
		"audit":          AuditScopes(),
		"communication":  CommunicationScopes(),
		"feedback":       FeedbackScopes(),
	})
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid principal id")
		return
	}
	overrides, err := h.service.ListOverrides(r.Context(), principalID)
	if err != nil {
		h.logger.Error("list overrides", slog.Int64("principal_id", principalID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"overrides": overrides})
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	var req setOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())

	var err error
	if *req.Granted {
		err = h.service.GrantPermission(r.Context(), req.PrincipalID, Permission(req.Permission), actorID)
	} else {
		err = h.service.RevokePermission(r.Context(), req.PrincipalID, Permission(req.Permission), actorID)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) resetCache(w http.ResponseWriter, r *http.Request) {
	h.service.ResetCache()
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
