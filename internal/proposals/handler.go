package proposals

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

// Handler serves proposal endpoints.
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

// MountRoutes registers proposal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(authz.PermProposalsViewOwn, authz.PermProposalsViewAll))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/evaluations", h.evaluations)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(authz.PermProposalsCreate))
		r.Post("/", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(authz.PermProposalsReview))
		r.Post("/{id}/review", h.startReview)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(authz.PermProposalsApprove))
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type submitRequest struct {
	GrantOpeningID  int64   `json:"grant_opening_id" validate:"required,gt=0"`
	Title           string  `json:"title" validate:"required,max=250"`
	Abstract        string  `json:"abstract" validate:"max=5000"`
	RequestedAmount float64 `json:"requested_amount" validate:"required,gt=0"`
	Priority        string  `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
}

type decisionRequest struct {
	ApprovedAmount  float64 `json:"approved_amount" validate:"omitempty,gt=0"`
	RejectionReason string  `json:"rejection_reason" validate:"max=2000"`
	Comment         string  `json:"comment" validate:"max=5000"`
	Score           int     `json:"score" validate:"gte=0,lte=100"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = Status(v)
	}
	if v := r.URL.Query().Get("financial_year_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.FinancialYearID = id
		}
	}
	if v := r.URL.Query().Get("researcher_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ResearcherID = id
		}
	}
	proposals, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list proposals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	proposal, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proposal)
}

func (h *Handler) evaluations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	evals, err := h.service.Evaluations(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"evaluations": evals})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	proposal, err := h.service.Submit(r.Context(), SubmitInput{
		GrantOpeningID:  req.GrantOpeningID,
		Title:           req.Title,
		Abstract:        req.Abstract,
		RequestedAmount: req.RequestedAmount,
		Priority:        Priority(req.Priority),
	}, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, proposal)
}

func (h *Handler) startReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	proposal, err := h.service.StartReview(r.Context(), id, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proposal)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	proposal, projectID, err := h.service.Approve(r.Context(), id, DecisionInput{
		ApprovedAmount: req.ApprovedAmount,
		Comment:        req.Comment,
		Score:          req.Score,
	}, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposal": proposal, "project_id": projectID})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := shared.PrincipalFromContext(r.Context())
	proposal, err := h.service.Reject(r.Context(), id, DecisionInput{
		RejectionReason: req.RejectionReason,
		Comment:         req.Comment,
		Score:           req.Score,
	}, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, proposal)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid proposal id")
		return 0, false
	}
	return id, true
}
