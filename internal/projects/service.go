package projects

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-grants/meridian/internal/shared"
)

// Service orchestrates the project lifecycle.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the project service.
func NewService(repo RepositoryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Start transitions INITIATED to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id, actorID int64) (Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusInitiated {
		return Project{}, illegalTransition(project.Status, StatusInProgress)
	}
	project.Status = StatusInProgress
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_START", id, nil)
	return project, nil
}

// Complete transitions IN_PROGRESS to COMPLETED, sets progress to 100,
// and stamps the end date if not already set. Completing an already
// completed project is a no-op: the original end date is preserved.
func (s *Service) Complete(ctx context.Context, id, actorID int64) (Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status == StatusCompleted {
		return project, nil
	}
	if project.Status != StatusInProgress {
		return Project{}, illegalTransition(project.Status, StatusCompleted)
	}
	project.Status = StatusCompleted
	project.Progress = 100
	if project.EndDate == nil {
		end := s.now()
		project.EndDate = &end
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_COMPLETE", id, nil)
	return project, nil
}

// Suspend transitions IN_PROGRESS to SUSPENDED.
func (s *Service) Suspend(ctx context.Context, id int64, reason string, actorID int64) (Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusInProgress {
		return Project{}, illegalTransition(project.Status, StatusSuspended)
	}
	project.Status = StatusSuspended
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_SUSPEND", id, map[string]any{"reason": reason})
	return project, nil
}

// Resume transitions SUSPENDED back to IN_PROGRESS.
func (s *Service) Resume(ctx context.Context, id, actorID int64) (Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusSuspended {
		return Project{}, illegalTransition(project.Status, StatusInProgress)
	}
	project.Status = StatusInProgress
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_RESUME", id, nil)
	return project, nil
}

// UpdateProgress records overall progress for an IN_PROGRESS project.
func (s *Service) UpdateProgress(ctx context.Context, id int64, progress int, actorID int64) (Project, error) {
	if progress < 0 || progress > 100 {
		return Project{}, fmt.Errorf("progress must be between 0 and 100: %w", shared.ErrValidation)
	}
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status != StatusInProgress {
		return Project{}, fmt.Errorf("progress updates require an in-progress project: %w", shared.ErrConflict)
	}
	project.Progress = progress
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_PROGRESS", id, map[string]any{"progress": progress})
	return project, nil
}

// RecordExpenditure adds to the utilized budget. The allocation is a
// soft ceiling: exceeding it is a conflict, not a silent clamp.
func (s *Service) RecordExpenditure(ctx context.Context, id int64, amount float64, actorID int64) (Project, error) {
	if amount <= 0 {
		return Project{}, fmt.Errorf("expenditure must be positive: %w", shared.ErrValidation)
	}
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status.terminalOrNotStarted() {
		return Project{}, fmt.Errorf("expenditure requires an active project: %w", shared.ErrConflict)
	}
	if project.BudgetUtilized+amount > project.BudgetAllocated {
		return Project{}, fmt.Errorf("expenditure exceeds allocated budget: %w", shared.ErrConflict)
	}
	project.BudgetUtilized += amount
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_EXPENDITURE", id, map[string]any{"amount": amount})
	return project, nil
}

// Get returns a project by ID.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.GetProject(ctx, id)
}

// GetByProposal returns the project created for a proposal.
func (s *Service) GetByProposal(ctx context.Context, proposalID int64) (Project, error) {
	return s.repo.GetByProposal(ctx, proposalID)
}

// List returns projects matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Project, error) {
	return s.repo.ListProjects(ctx, filter)
}

func (s Status) terminalOrNotStarted() bool {
	return s == StatusCompleted || s == StatusInitiated
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, projectID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(projectID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Error("record project audit", slog.Any("error", err))
	}
}

func illegalTransition(from, to Status) error {
	if from == StatusCompleted {
		return fmt.Errorf("project in terminal state %s: %w", from, shared.ErrConflict)
	}
	return fmt.Errorf("illegal transition %s -> %s: %w", from, to, shared.ErrConflict)
}
