package identity

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/platform/httpx"
	"github.com/meridian-grants/meridian/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	mw       authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), mw: mw}
}

// MountRoutes registers user administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(authz.PermUsersView))
		r.Get("/", h.listPrincipals)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(authz.PermUsersApprove))
		r.Post("/{principalID}/approve", h.approveResearcher)
		r.Post("/{principalID}/decline", h.declineResearcher)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(authz.PermUsersEdit))
		r.Post("/{principalID}/role", h.setRole)
	})
}

type principalView struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN SUPERVISOR RESEARCHER GENERAL_USER"`
}

func (h *Handler) listPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.service.ListPrincipals(r.Context())
	if err != nil {
		h.logger.Error("list principals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]principalView, len(principals))
	for i, p := range principals {
		views[i] = principalView{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role, IsActive: p.IsActive}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) approveResearcher(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.ApproveResearcher)
}

func (h *Handler) declineResearcher(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.DeclineResearcher)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, principalID, actorID int64) error) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid principal id")
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	if err := action(r.Context(), principalID, actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid principal id")
		return
	}
	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.SetRole(r.Context(), principalID, req.Role, actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
