package proposals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/platform/db"
	"github.com/meridian-grants/meridian/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProposal(ctx context.Context, id int64) (Proposal, error)
	ListProposals(ctx context.Context, filter ListFilter) ([]Proposal, error)
	ListEvaluations(ctx context.Context, proposalID int64) ([]Evaluation, error)
	HasActiveProposal(ctx context.Context, researcherID, financialYearID int64) (bool, error)
	FindProjectIDByProposal(ctx context.Context, proposalID int64) (int64, error)
	CreateProposal(ctx context.Context, p Proposal) (int64, error)
}

// TxRepository groups the writes that must share one transaction.
type TxRepository interface {
	UpdateProposalStatus(ctx context.Context, id int64, status Status, fields StatusFields) error
	InsertEvaluation(ctx context.Context, e Evaluation) error
	CreateProject(ctx context.Context, seed ProjectSeed) (int64, error)
}

// StatusFields carries the column updates attached to a transition.
type StatusFields struct {
	ReviewedAt      *time.Time
	DecidedAt       *time.Time
	ApprovedAmount  *float64
	RejectionReason *string
}

// ListFilter narrows proposal listings.
type ListFilter struct {
	ResearcherID    int64
	FinancialYearID int64
	Status          Status
}

// PGRepository implements RepositoryPort using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type pgTxRepository struct {
	tx pgx.Tx
}

// WithTx runs fn inside a single transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const proposalColumns = `id, researcher_id, grant_opening_id, financial_year_id, title, abstract,
requested_amount, approved_amount, status, priority, submitted_at, reviewed_at, decided_at, rejection_reason`

// GetProposal fetches a proposal by ID.
func (r *PGRepository) GetProposal(ctx context.Context, id int64) (Proposal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id=$1`, id)
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Proposal{}, shared.ErrNotFound
		}
		return Proposal{}, fmt.Errorf("proposals: get: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return p, nil
}

// ListProposals returns proposals matching filter, newest first.
func (r *PGRepository) ListProposals(ctx context.Context, filter ListFilter) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE TRUE`
	args := []any{}
	if filter.ResearcherID != 0 {
		args = append(args, filter.ResearcherID)
		query += fmt.Sprintf(" AND researcher_id=$%d", len(args))
	}
	if filter.FinancialYearID != 0 {
		args = append(args, filter.FinancialYearID)
		query += fmt.Sprintf(" AND financial_year_id=$%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY submitted_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("proposals: list: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var proposals []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return proposals, nil
}

// ListEvaluations returns evaluations for a proposal in order.
func (r *PGRepository) ListEvaluations(ctx context.Context, proposalID int64) ([]Evaluation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, proposal_id, evaluator_id, action, comment, score, at
FROM proposal_evaluations WHERE proposal_id=$1 ORDER BY at ASC`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposals: list evaluations: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var evals []Evaluation
	for rows.Next() {
		var e Evaluation
		var action string
		if err := rows.Scan(&e.ID, &e.ProposalID, &e.EvaluatorID, &action, &e.Comment, &e.Score, &e.At); err != nil {
			return nil, err
		}
		e.Action = EvaluationAction(action)
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return evals, nil
}

// HasActiveProposal reports whether the researcher already holds a
// non-rejected proposal in the financial year.
func (r *PGRepository) HasActiveProposal(ctx context.Context, researcherID, financialYearID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT TRUE FROM proposals
WHERE researcher_id=$1 AND financial_year_id=$2 AND status <> 'REJECTED' LIMIT 1`,
		researcherID, financialYearID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("proposals: active check: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return true, nil
}

// FindProjectIDByProposal returns the project created for a proposal,
// or ErrNotFound when none exists yet.
func (r *PGRepository) FindProjectIDByProposal(ctx context.Context, proposalID int64) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM projects WHERE proposal_id=$1`, proposalID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("proposals: find project: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return id, nil
}

// CreateProposal inserts a proposal in SUBMITTED state.
func (r *PGRepository) CreateProposal(ctx context.Context, p Proposal) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO proposals
(researcher_id, grant_opening_id, financial_year_id, title, abstract, requested_amount, approved_amount, status, priority, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9) RETURNING id`,
		p.ResearcherID, p.GrantOpeningID, p.FinancialYearID, p.Title, p.Abstract,
		p.RequestedAmount, string(p.Status), string(p.Priority), p.SubmittedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("proposals: create: %w", err)
	}
	return id, nil
}

// UpdateProposalStatus applies a transition's column updates.
func (t *pgTxRepository) UpdateProposalStatus(ctx context.Context, id int64, status Status, fields StatusFields) error {
	tag, err := t.tx.Exec(ctx, `UPDATE proposals SET
status=$2,
reviewed_at=COALESCE($3, reviewed_at),
decided_at=COALESCE($4, decided_at),
approved_amount=COALESCE($5, approved_amount),
rejection_reason=COALESCE($6, rejection_reason)
WHERE id=$1`,
		id, string(status), fields.ReviewedAt, fields.DecidedAt, fields.ApprovedAmount, fields.RejectionReason)
	if err != nil {
		return fmt.Errorf("proposals: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertEvaluation records reviewer commentary for a transition.
func (t *pgTxRepository) InsertEvaluation(ctx context.Context, e Evaluation) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO proposal_evaluations (proposal_id, evaluator_id, action, comment, score, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		e.ProposalID, e.EvaluatorID, string(e.Action), e.Comment, e.Score, e.At)
	if err != nil {
		return fmt.Errorf("proposals: insert evaluation: %w", err)
	}
	return nil
}

// CreateProject inserts the auto-created project. The unique index on
// projects.proposal_id is the final guard against concurrent duplicate
// approvals; its violation surfaces as ErrConflict.
func (t *pgTxRepository) CreateProject(ctx context.Context, seed ProjectSeed) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO projects
(proposal_id, supervisor_id, title, status, start_date, progress, budget_allocated, budget_utilized)
VALUES ($1, $2, $3, 'INITIATED', $4, 0, $5, 0) RETURNING id`,
		seed.ProposalID, seed.SupervisorID, seed.Title, seed.StartDate, seed.BudgetAllocated).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("project already exists for proposal %d: %w", seed.ProposalID, shared.ErrConflict)
		}
		return 0, fmt.Errorf("proposals: create project: %w", err)
	}
	return id, nil
}

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	var status, priority string
	var rejection *string
	err := row.Scan(
		&p.ID, &p.ResearcherID, &p.GrantOpeningID, &p.FinancialYearID, &p.Title, &p.Abstract,
		&p.RequestedAmount, &p.ApprovedAmount, &status, &priority, &p.SubmittedAt,
		&p.ReviewedAt, &p.DecidedAt, &rejection,
	)
	if err != nil {
		return Proposal{}, err
	}
	p.Status = Status(status)
	p.Priority = Priority(priority)
	if rejection != nil {
		p.RejectionReason = *rejection
	}
	return p, nil
}

var _ RepositoryPort = (*PGRepository)(nil)
