package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-grants/meridian/internal/shared"
)

// Override is an explicit per-principal deviation from the role-derived
// default. At most one live override exists per (principal, permission)
// pair: the store upserts, last write wins.
type Override struct {
	PrincipalID int64
	Permission  Permission
	Granted     bool
	ActorID     int64
	UpdatedAt   time.Time
}

// OverrideRepository persists permission overrides.
type OverrideRepository interface {
	ListOverrides(ctx context.Context, principalID int64) ([]Override, error)
	UpsertOverride(ctx context.Context, principalID int64, perm Permission, granted bool, actorID int64) error
}

// PGOverrideRepository implements OverrideRepository using PostgreSQL.
type PGOverrideRepository struct {
	pool *pgxpool.Pool
}

// NewOverrideRepository constructs a PostgreSQL repository.
func NewOverrideRepository(pool *pgxpool.Pool) *PGOverrideRepository {
	return &PGOverrideRepository{pool: pool}
}

// ListOverrides returns the live overrides for a principal ordered by
// their last update. A storage failure is reported as
// ErrBackendUnavailable so callers know the check was inconclusive.
func (r *PGOverrideRepository) ListOverrides(ctx context.Context, principalID int64) ([]Override, error) {
	rows, err := r.pool.Query(ctx, `SELECT principal_id, permission, granted, actor_id, updated_at
FROM permission_overrides WHERE principal_id=$1 ORDER BY updated_at ASC`, principalID)
	if err != nil {
		return nil, fmt.Errorf("authz: list overrides: %w: %v", shared.ErrBackendUnavailable, err)
	}
	defer rows.Close()
	var overrides []Override
	for rows.Next() {
		var o Override
		var perm string
		if err := rows.Scan(&o.PrincipalID, &perm, &o.Granted, &o.ActorID, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("authz: scan override: %w: %v", shared.ErrBackendUnavailable, err)
		}
		o.Permission = Permission(perm)
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: read overrides: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return overrides, nil
}

// UpsertOverride writes an override with last-write-wins semantics.
func (r *PGOverrideRepository) UpsertOverride(ctx context.Context, principalID int64, perm Permission, granted bool, actorID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO permission_overrides (principal_id, permission, granted, actor_id, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (principal_id, permission)
DO UPDATE SET granted=EXCLUDED.granted, actor_id=EXCLUDED.actor_id, updated_at=NOW()`,
		principalID, string(perm), granted, actorID)
	if err != nil {
		return fmt.Errorf("authz: upsert override: %w: %v", shared.ErrBackendUnavailable, err)
	}
	return nil
}

var _ OverrideRepository = (*PGOverrideRepository)(nil)
