package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/shared"
)

// RepositoryPort abstracts feedback persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, fb Feedback) (Feedback, error)
	ListByProject(ctx context.Context, projectID int64) ([]Feedback, error)
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds PGRepository instance.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, fb Feedback) (Feedback, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO project_feedback (project_id, author_id, body, rating)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		fb.ProjectID, fb.AuthorID, fb.Body, fb.Rating,
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Feedback{}, fmt.Errorf("project %d: %w", fb.ProjectID, shared.ErrNotFound)
		}
		return Feedback{}, fmt.Errorf("insert feedback: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return fb, nil
}

func (r *PGRepository) ListByProject(ctx context.Context, projectID int64) ([]Feedback, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, author_id, body, rating, created_at
		FROM project_feedback
		WHERE project_id = $1
		ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	var items []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.ProjectID, &fb.AuthorID, &fb.Body, &fb.Rating, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w: %v", shared.ErrBackendUnavailable, err)
		}
		items = append(items, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return items, nil
}
