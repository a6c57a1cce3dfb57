package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/platform/httpx"
)

// Handler serves master-data endpoints.
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

// MountRoutes registers master-data routes. Listing is open to any
// authenticated principal; mutations require admin settings.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/departments", h.listDepartments)
	r.Get("/themes", h.listThemes)
	r.Get("/financial-years", h.listFinancialYears)
	r.Get("/openings", h.listOpenings)

	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAll(authz.PermAdminSettings))
		r.Post("/departments", h.createDepartment)
		r.Post("/themes", h.createTheme)
		r.Post("/financial-years", h.createFinancialYear)
		r.Post("/openings", h.createOpening)
		r.Post("/openings/{id}/activate", h.setOpeningActive(true))
		r.Post("/openings/{id}/deactivate", h.setOpeningActive(false))
	})
}

type departmentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Code string `json:"code" validate:"max=32"`
}

type themeRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

type financialYearRequest struct {
	Label    string    `json:"label" validate:"required,max=32"`
	StartsOn time.Time `json:"starts_on" validate:"required"`
	EndsOn   time.Time `json:"ends_on" validate:"required"`
	IsActive bool      `json:"is_active"`
}

type openingRequest struct {
	FinancialYearID int64     `json:"financial_year_id" validate:"required"`
	ThemeID         int64     `json:"theme_id" validate:"required"`
	Title           string    `json:"title" validate:"required,max=255"`
	Budget          float64   `json:"budget" validate:"required,gt=0"`
	OpensAt         time.Time `json:"opens_at" validate:"required"`
	ClosesAt        time.Time `json:"closes_at" validate:"required"`
	IsActive        bool      `json:"is_active"`
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListDepartments(r.Context())
	if err != nil {
		h.logger.Error("list departments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": items})
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.service.CreateDepartment(r.Context(), req.Name, req.Code)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) listThemes(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListThemes(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"themes": items})
}

func (h *Handler) createTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.service.CreateTheme(r.Context(), req.Name, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) listFinancialYears(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFinancialYears(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"financial_years": items})
}

func (h *Handler) createFinancialYear(w http.ResponseWriter, r *http.Request) {
	var req financialYearRequest
	if !h.decode(w, r, &req) {
		return
	}
	fy, err := h.service.CreateFinancialYear(r.Context(), FinancialYear{
		Label:    req.Label,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
		IsActive: req.IsActive,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fy)
}

func (h *Handler) listOpenings(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	items, err := h.service.ListOpenings(r.Context(), activeOnly)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"openings": items})
}

func (h *Handler) createOpening(w http.ResponseWriter, r *http.Request) {
	var req openingRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.CreateOpening(r.Context(), GrantOpening{
		FinancialYearID: req.FinancialYearID,
		ThemeID:         req.ThemeID,
		Title:           req.Title,
		Budget:          req.Budget,
		OpensAt:         req.OpensAt,
		ClosesAt:        req.ClosesAt,
		IsActive:        req.IsActive,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) setOpeningActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid opening id")
			return
		}
		if err := h.service.SetOpeningActive(r.Context(), id, active); err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"is_active": active})
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}
