package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/shared"
)

// RepositoryPort abstracts master-data persistence.
type RepositoryPort interface {
	CreateDepartment(ctx context.Context, d Department) (Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)

	CreateTheme(ctx context.Context, t Theme) (Theme, error)
	ListThemes(ctx context.Context) ([]Theme, error)

	CreateFinancialYear(ctx context.Context, fy FinancialYear) (FinancialYear, error)
	ListFinancialYears(ctx context.Context) ([]FinancialYear, error)
	HasOverlappingYear(ctx context.Context, startsOn, endsOn time.Time) (bool, error)

	CreateOpening(ctx context.Context, o GrantOpening) (GrantOpening, error)
	ListOpenings(ctx context.Context, activeOnly bool) ([]GrantOpening, error)
	GetOpening(ctx context.Context, id int64) (GrantOpening, error)
	SetOpeningActive(ctx context.Context, id int64, active bool) error
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds PGRepository instance.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateDepartment(ctx context.Context, d Department) (Department, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, code)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		d.Name, d.Code,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Department{}, fmt.Errorf("department %q already exists: %w", d.Name, shared.ErrConflict)
		}
		return Department{}, fmt.Errorf("create department: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return d, nil
}

func (r *PGRepository) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, code, created_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var items []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan department: %w: %v", shared.ErrBackendUnavailable, err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *PGRepository) CreateTheme(ctx context.Context, t Theme) (Theme, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO research_themes (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		t.Name, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Theme{}, fmt.Errorf("theme %q already exists: %w", t.Name, shared.ErrConflict)
		}
		return Theme{}, fmt.Errorf("create theme: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return t, nil
}

func (r *PGRepository) ListThemes(ctx context.Context) ([]Theme, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at FROM research_themes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var items []Theme
	for rows.Next() {
		var t Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan theme: %w: %v", shared.ErrBackendUnavailable, err)
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *PGRepository) CreateFinancialYear(ctx context.Context, fy FinancialYear) (FinancialYear, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO financial_years (label, starts_on, ends_on, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		fy.Label, fy.StartsOn, fy.EndsOn, fy.IsActive,
	).Scan(&fy.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return FinancialYear{}, fmt.Errorf("financial year %q already exists: %w", fy.Label, shared.ErrConflict)
		}
		return FinancialYear{}, fmt.Errorf("create financial year: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return fy, nil
}

func (r *PGRepository) ListFinancialYears(ctx context.Context) ([]FinancialYear, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, label, starts_on, ends_on, is_active
		FROM financial_years ORDER BY starts_on DESC`)
	if err != nil {
		return nil, fmt.Errorf("list financial years: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var items []FinancialYear
	for rows.Next() {
		var fy FinancialYear
		if err := rows.Scan(&fy.ID, &fy.Label, &fy.StartsOn, &fy.EndsOn, &fy.IsActive); err != nil {
			return nil, fmt.Errorf("scan financial year: %w: %v", shared.ErrBackendUnavailable, err)
		}
		items = append(items, fy)
	}
	return items, rows.Err()
}

func (r *PGRepository) HasOverlappingYear(ctx context.Context, startsOn, endsOn time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM financial_years
			WHERE starts_on <= $2 AND ends_on >= $1
		)`, startsOn, endsOn).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check year overlap: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return exists, nil
}

func (r *PGRepository) CreateOpening(ctx context.Context, o GrantOpening) (GrantOpening, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO grant_openings (financial_year_id, theme_id, title, budget, opens_at, closes_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		o.FinancialYearID, o.ThemeID, o.Title, o.Budget, o.OpensAt, o.ClosesAt, o.IsActive,
	).Scan(&o.ID)
	if err != nil {
		return GrantOpening{}, fmt.Errorf("create opening: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return o, nil
}

func (r *PGRepository) ListOpenings(ctx context.Context, activeOnly bool) ([]GrantOpening, error) {
	query := `
		SELECT id, financial_year_id, theme_id, title, budget, opens_at, closes_at, is_active
		FROM grant_openings`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY opens_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list openings: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var items []GrantOpening
	for rows.Next() {
		var o GrantOpening
		if err := rows.Scan(&o.ID, &o.FinancialYearID, &o.ThemeID, &o.Title, &o.Budget, &o.OpensAt, &o.ClosesAt, &o.IsActive); err != nil {
			return nil, fmt.Errorf("scan opening: %w: %v", shared.ErrBackendUnavailable, err)
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *PGRepository) GetOpening(ctx context.Context, id int64) (GrantOpening, error) {
	var o GrantOpening
	err := r.pool.QueryRow(ctx, `
		SELECT id, financial_year_id, theme_id, title, budget, opens_at, closes_at, is_active
		FROM grant_openings WHERE id = $1`, id,
	).Scan(&o.ID, &o.FinancialYearID, &o.ThemeID, &o.Title, &o.Budget, &o.OpensAt, &o.ClosesAt, &o.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GrantOpening{}, fmt.Errorf("opening %d: %w", id, shared.ErrNotFound)
		}
		return GrantOpening{}, fmt.Errorf("get opening: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return o, nil
}

func (r *PGRepository) SetOpeningActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE grant_openings SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set opening active: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("opening %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
