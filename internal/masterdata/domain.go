package masterdata

import "time"

// Department groups researchers for reporting.
type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Theme is a research area a grant opening targets.
type Theme struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// FinancialYear bounds a funding period. Periods may not overlap.
type FinancialYear struct {
	ID       int64     `json:"id"`
	Label    string    `json:"label"`
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
	IsActive bool      `json:"is_active"`
}

// GrantOpening is a call for proposals within a financial year.
type GrantOpening struct {
	ID              int64     `json:"id"`
	FinancialYearID int64     `json:"financial_year_id"`
	ThemeID         int64     `json:"theme_id"`
	Title           string    `json:"title"`
	Budget          float64   `json:"budget"`
	OpensAt         time.Time `json:"opens_at"`
	ClosesAt        time.Time `json:"closes_at"`
	IsActive        bool      `json:"is_active"`
}
