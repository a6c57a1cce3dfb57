package masterdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-grants/meridian/internal/shared"
)

// Service holds master-data business rules.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateDepartment(ctx context.Context, name, code string) (Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Department{}, fmt.Errorf("department name is required: %w", shared.ErrValidation)
	}
	return s.repo.CreateDepartment(ctx, Department{Name: name, Code: strings.TrimSpace(code)})
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *Service) CreateTheme(ctx context.Context, name, description string) (Theme, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Theme{}, fmt.Errorf("theme name is required: %w", shared.ErrValidation)
	}
	return s.repo.CreateTheme(ctx, Theme{Name: name, Description: description})
}

func (s *Service) ListThemes(ctx context.Context) ([]Theme, error) {
	return s.repo.ListThemes(ctx)
}

// CreateFinancialYear rejects a period overlapping any existing year.
func (s *Service) CreateFinancialYear(ctx context.Context, fy FinancialYear) (FinancialYear, error) {
	if strings.TrimSpace(fy.Label) == "" {
		return FinancialYear{}, fmt.Errorf("financial year label is required: %w", shared.ErrValidation)
	}
	if !fy.EndsOn.After(fy.StartsOn) {
		return FinancialYear{}, fmt.Errorf("financial year must end after it starts: %w", shared.ErrValidation)
	}
	overlaps, err := s.repo.HasOverlappingYear(ctx, fy.StartsOn, fy.EndsOn)
	if err != nil {
		return FinancialYear{}, err
	}
	if overlaps {
		return FinancialYear{}, fmt.Errorf("financial year %s overlaps an existing period: %w", fy.Label, shared.ErrConflict)
	}
	return s.repo.CreateFinancialYear(ctx, fy)
}

func (s *Service) ListFinancialYears(ctx context.Context) ([]FinancialYear, error) {
	return s.repo.ListFinancialYears(ctx)
}

func (s *Service) CreateOpening(ctx context.Context, o GrantOpening) (GrantOpening, error) {
	if strings.TrimSpace(o.Title) == "" {
		return GrantOpening{}, fmt.Errorf("opening title is required: %w", shared.ErrValidation)
	}
	if !o.ClosesAt.After(o.OpensAt) {
		return GrantOpening{}, fmt.Errorf("opening must close after it opens: %w", shared.ErrValidation)
	}
	if o.Budget <= 0 {
		return GrantOpening{}, fmt.Errorf("opening budget must be positive: %w", shared.ErrValidation)
	}
	return s.repo.CreateOpening(ctx, o)
}

func (s *Service) ListOpenings(ctx context.Context, activeOnly bool) ([]GrantOpening, error) {
	return s.repo.ListOpenings(ctx, activeOnly)
}

func (s *Service) SetOpeningActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetOpeningActive(ctx, id, active)
}

// ActiveOpening returns the financial year of an opening accepting
// submissions right now. Closed or inactive openings are a conflict.
func (s *Service) ActiveOpening(ctx context.Context, openingID int64) (int64, error) {
	o, err := s.repo.GetOpening(ctx, openingID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	if !o.IsActive || now.Before(o.OpensAt) || now.After(o.ClosesAt) {
		return 0, fmt.Errorf("opening %d is not accepting submissions: %w", openingID, shared.ErrConflict)
	}
	return o.FinancialYearID, nil
}
