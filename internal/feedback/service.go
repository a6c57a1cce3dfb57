package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meridian-grants/meridian/internal/shared"
)

// Service holds feedback business rules.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Give records feedback on a project. Rating is a 1..5 score.
func (s *Service) Give(ctx context.Context, projectID, authorID int64, body string, rating int) (Feedback, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Feedback{}, fmt.Errorf("feedback body is required: %w", shared.ErrValidation)
	}
	if rating < 1 || rating > 5 {
		return Feedback{}, fmt.Errorf("rating must be between 1 and 5: %w", shared.ErrValidation)
	}

	fb, err := s.repo.Insert(ctx, Feedback{
		ProjectID: projectID,
		AuthorID:  authorID,
		Body:      body,
		Rating:    rating,
	})
	if err != nil {
		return Feedback{}, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  authorID,
		Action:   "FEEDBACK_GIVE",
		Entity:   "project",
		EntityID: strconv.FormatInt(projectID, 10),
		Meta:     map[string]any{"rating": rating},
	}); err != nil {
		s.logger.Warn("audit feedback", slog.Any("error", err))
	}
	return fb, nil
}

// ListByProject returns feedback for one project, newest first.
func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]Feedback, error) {
	return s.repo.ListByProject(ctx, projectID)
}
