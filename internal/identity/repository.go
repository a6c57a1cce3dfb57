package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/shared"
)

// AccessRecord is the identity projection consumed by authorization.
type AccessRecord struct {
	Role         string
	HasProfile   bool
	Approved     bool
	ResearcherID int64
}

// Repository defines persistence operations for the identity module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
	GetAccess(ctx context.Context, principalID int64) (AccessRecord, error)
	CreatePrincipal(ctx context.Context, p Principal, profile *ResearcherProfile) (int64, error)
	ApproveResearcher(ctx context.Context, principalID, actorID int64) error
	DeclineResearcher(ctx context.Context, principalID, actorID int64) error
	SetRole(ctx context.Context, principalID int64, role string) error
	ListPrincipals(ctx context.Context) ([]Principal, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a principal by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.findOne(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at
FROM principals WHERE email=$1`, email)
}

// FindByID fetches a principal by ID.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return r.findOne(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at
FROM principals WHERE id=$1`, id)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (*Principal, error) {
	var p Principal
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("identity: find principal: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return &p, nil
}

// GetAccess returns the role and researcher-approval state for a
// principal. A missing principal is ErrNotFound; any other failure is
// reported as ErrBackendUnavailable.
func (r *PGRepository) GetAccess(ctx context.Context, principalID int64) (AccessRecord, error) {
	var rec AccessRecord
	var researcherID *int64
	var approved *bool
	err := r.pool.QueryRow(ctx, `SELECT p.role, rp.principal_id, rp.is_approved
FROM principals p
LEFT JOIN researcher_profiles rp ON rp.principal_id = p.id
WHERE p.id=$1`, principalID).Scan(&rec.Role, &researcherID, &approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccessRecord{}, shared.ErrNotFound
		}
		return AccessRecord{}, fmt.Errorf("identity: access lookup: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if researcherID != nil {
		rec.HasProfile = true
		rec.ResearcherID = *researcherID
	}
	if approved != nil {
		rec.Approved = *approved
	}
	return rec, nil
}

// CreatePrincipal inserts a principal and, when provided, its
// researcher profile within one transaction.
func (r *PGRepository) CreatePrincipal(ctx context.Context, p Principal, profile *ResearcherProfile) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("identity: begin: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx, `INSERT INTO principals (email, name, password_hash, role, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW()) RETURNING id`,
		p.Email, p.Name, p.PasswordHash, p.Role).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("identity: create principal: %w", err)
	}
	if profile != nil {
		_, err = tx.Exec(ctx, `INSERT INTO researcher_profiles (principal_id, department_id, is_approved, created_at)
VALUES ($1, $2, FALSE, NOW())`, id, profile.DepartmentID)
		if err != nil {
			return 0, fmt.Errorf("identity: create researcher profile: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("identity: commit: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return id, nil
}

// ApproveResearcher flips the approval flag exactly once. A second
// approval attempt reports ErrConflict.
func (r *PGRepository) ApproveResearcher(ctx context.Context, principalID, actorID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE researcher_profiles
SET is_approved=TRUE, reviewed_at=NOW(), reviewed_by=$2
WHERE principal_id=$1 AND is_approved=FALSE AND reviewed_at IS NULL`, principalID, actorID)
	if err != nil {
		return fmt.Errorf("identity: approve researcher: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return r.reviewOutcome(ctx, principalID)
	}
	return nil
}

// DeclineResearcher records a review without approval. The flag stays
// false; reviewed_at distinguishes "declined" from "not yet reviewed".
func (r *PGRepository) DeclineResearcher(ctx context.Context, principalID, actorID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE researcher_profiles
SET reviewed_at=NOW(), reviewed_by=$2
WHERE principal_id=$1 AND is_approved=FALSE AND reviewed_at IS NULL`, principalID, actorID)
	if err != nil {
		return fmt.Errorf("identity: decline researcher: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return r.reviewOutcome(ctx, principalID)
	}
	return nil
}

func (r *PGRepository) reviewOutcome(ctx context.Context, principalID int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT TRUE FROM researcher_profiles WHERE principal_id=$1`, principalID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return fmt.Errorf("identity: review outcome: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("researcher profile already reviewed: %w", shared.ErrConflict)
}

// SetRole updates a principal's role. Self-service role changes are
// rejected at the handler layer; this is the admin mutation.
func (r *PGRepository) SetRole(ctx context.Context, principalID int64, role string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE principals SET role=$2, updated_at=NOW() WHERE id=$1`, principalID, role)
	if err != nil {
		return fmt.Errorf("identity: set role: %w: %v", shared.ErrBackendUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPrincipals returns all principals ordered by id.
func (r *PGRepository) ListPrincipals(ctx context.Context) ([]Principal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at
FROM principals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("identity: list principals: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var principals []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return principals, nil
}

var _ Repository = (*PGRepository)(nil)
