package projects

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-grants/meridian/internal/shared"
)

type memoryProjectRepo struct {
	projects map[int64]Project
	nextID   int64
}

func newMemoryProjectRepo() *memoryProjectRepo {
	return &memoryProjectRepo{projects: make(map[int64]Project)}
}

func (r *memoryProjectRepo) GetProject(ctx context.Context, id int64) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryProjectRepo) GetByProposal(ctx context.Context, proposalID int64) (Project, error) {
	for _, p := range r.projects {
		if p.ProposalID == proposalID {
			return p, nil
		}
	}
	return Project{}, shared.ErrNotFound
}

func (r *memoryProjectRepo) ListProjects(ctx context.Context, filter ListFilter) ([]Project, error) {
	var out []Project
	for _, p := range r.projects {
		if filter.SupervisorID != 0 && p.SupervisorID != filter.SupervisorID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryProjectRepo) UpdateProject(ctx context.Context, p Project) error {
	if _, ok := r.projects[p.ID]; !ok {
		return shared.ErrNotFound
	}
	r.projects[p.ID] = p
	return nil
}

func (r *memoryProjectRepo) seed(status Status) Project {
	r.nextID++
	p := Project{
		ID:              r.nextID,
		ProposalID:      r.nextID,
		SupervisorID:    2,
		Title:           "Glacier melt monitoring",
		Status:          status,
		StartDate:       time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Progress:        10,
		BudgetAllocated: 100000,
	}
	r.projects[p.ID] = p
	return p
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry shared.AuditLog) error { return nil }

func newProjectService(repo *memoryProjectRepo) *Service {
	return NewService(repo, noopAudit{}, slog.Default())
}

func TestStartRequiresInitiated(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()

	p := repo.seed(StatusInitiated)
	got, err := svc.Start(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, got.Status)

	running := repo.seed(StatusInProgress)
	_, err = svc.Start(ctx, running.ID, 2)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCompleteSetsProgressAndEndDate(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	p := repo.seed(StatusInProgress)

	got, err := svc.Complete(context.Background(), p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, 100, got.Progress)
	require.NotNil(t, got.EndDate)
}

func TestCompleteIsIdempotent(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	p := repo.seed(StatusInProgress)
	ctx := context.Background()

	first, err := svc.Complete(ctx, p.ID, 2)
	require.NoError(t, err)

	second, err := svc.Complete(ctx, p.ID, 2)
	require.NoError(t, err, "repeated complete is a no-op, not a conflict")
	require.Equal(t, first.EndDate, second.EndDate, "original end date is preserved")
	require.Equal(t, StatusCompleted, second.Status)
}

func TestCompletedRejectsOtherTransitions(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()
	p := repo.seed(StatusCompleted)

	_, err := svc.Start(ctx, p.ID, 2)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Suspend(ctx, p.ID, "audit finding", 2)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Resume(ctx, p.ID, 2)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.UpdateProgress(ctx, p.ID, 50, 2)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestSuspendAndResume(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()
	p := repo.seed(StatusInProgress)

	got, err := svc.Suspend(ctx, p.ID, "funding hold", 2)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, got.Status)

	got, err = svc.Resume(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, got.Status)
}

func TestUpdateProgress(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()
	p := repo.seed(StatusInProgress)

	got, err := svc.UpdateProgress(ctx, p.ID, 65, 2)
	require.NoError(t, err)
	require.Equal(t, 65, got.Progress)

	_, err = svc.UpdateProgress(ctx, p.ID, 101, 2)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProgress(ctx, p.ID, -1, 2)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordExpenditure(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()
	p := repo.seed(StatusInProgress)

	got, err := svc.RecordExpenditure(ctx, p.ID, 40000, 3)
	require.NoError(t, err)
	require.Equal(t, float64(40000), got.BudgetUtilized)

	_, err = svc.RecordExpenditure(ctx, p.ID, 70000, 3)
	require.ErrorIs(t, err, shared.ErrConflict, "ceiling breach is a conflict")

	_, err = svc.RecordExpenditure(ctx, p.ID, -5, 3)
	require.ErrorIs(t, err, shared.ErrValidation)

	idle := repo.seed(StatusInitiated)
	_, err = svc.RecordExpenditure(ctx, idle.ID, 10, 3)
	require.ErrorIs(t, err, shared.ErrConflict)
}
