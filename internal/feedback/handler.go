package feedback

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/platform/httpx"
	"github.com/meridian-grants/meridian/internal/shared"
)

// Handler serves project feedback endpoints.
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

// MountRoutes registers feedback routes under a project scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequireAll(authz.PermFeedbackView)).Get("/{id}/feedback", h.list)
	r.With(h.mw.RequireAll(authz.PermFeedbackGive)).Post("/{id}/feedback", h.give)
}

type giveRequest struct {
	Body   string `json:"body" validate:"required,max=4000"`
	Rating int    `json:"rating" validate:"required,gte=1,lte=5"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	items, err := h.service.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("list feedback", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"feedback": items})
}

func (h *Handler) give(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	var req giveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	authorID, _ := shared.PrincipalFromContext(r.Context())
	fb, err := h.service.Give(r.Context(), projectID, authorID, req.Body, req.Rating)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fb)
}
