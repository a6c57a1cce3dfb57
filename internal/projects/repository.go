package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	GetProject(ctx context.Context, id int64) (Project, error)
	GetByProposal(ctx context.Context, proposalID int64) (Project, error)
	ListProjects(ctx context.Context, filter ListFilter) ([]Project, error)
	UpdateProject(ctx context.Context, p Project) error
}

// ListFilter narrows project listings.
type ListFilter struct {
	SupervisorID int64
	Status       Status
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const projectColumns = `id, proposal_id, supervisor_id, title, status, start_date, end_date, progress, budget_allocated, budget_utilized`

// GetProject fetches a project by ID.
func (r *PGRepository) GetProject(ctx context.Context, id int64) (Project, error) {
	return r.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, id)
}

// GetByProposal fetches the project created for a proposal.
func (r *PGRepository) GetByProposal(ctx context.Context, proposalID int64) (Project, error) {
	return r.one(ctx, `SELECT `+projectColumns+` FROM projects WHERE proposal_id=$1`, proposalID)
}

func (r *PGRepository) one(ctx context.Context, query string, arg any) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, fmt.Errorf("projects: get: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return p, nil
}

// ListProjects returns projects matching filter.
func (r *PGRepository) ListProjects(ctx context.Context, filter ListFilter) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE TRUE`
	args := []any{}
	if filter.SupervisorID != 0 {
		args = append(args, filter.SupervisorID)
		query += fmt.Sprintf(" AND supervisor_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY start_date DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("projects: list: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateProject persists status, progress, dates, and budget fields.
func (r *PGRepository) UpdateProject(ctx context.Context, p Project) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET
status=$2, end_date=$3, progress=$4, budget_utilized=$5
WHERE id=$1`,
		p.ID, string(p.Status), p.EndDate, p.Progress, p.BudgetUtilized)
	if err != nil {
		return fmt.Errorf("projects: update: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status string
	err := row.Scan(
		&p.ID, &p.ProposalID, &p.SupervisorID, &p.Title, &status, &p.StartDate,
		&p.EndDate, &p.Progress, &p.BudgetAllocated, &p.BudgetUtilized,
	)
	if err != nil {
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
