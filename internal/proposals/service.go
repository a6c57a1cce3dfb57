package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/notify"
	"github.com/meridian-grants/meridian/internal/shared"
)

// OpeningPort exposes the grant-opening lookup needed at submission.
type OpeningPort interface {
	ActiveOpening(ctx context.Context, openingID int64) (financialYearID int64, err error)
}

// Service orchestrates the proposal lifecycle.
type Service struct {
	repo     RepositoryPort
	identity authz.IdentityPort
	openings OpeningPort
	notifier notify.Notifier
	audit    shared.AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the proposal service.
func NewService(repo RepositoryPort, identity authz.IdentityPort, openings OpeningPort, notifier notify.Notifier, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		identity: identity,
		openings: openings,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitInput describes a submission payload.
type SubmitInput struct {
	GrantOpeningID  int64
	Title           string
	Abstract        string
	RequestedAmount float64
	Priority        Priority
}

// DecisionInput carries reviewer data for approve/reject actions.
type DecisionInput struct {
	ApprovedAmount  float64
	RejectionReason string
	Comment         string
	Score           int
}

// Submit creates a proposal for an approved researcher. A researcher
// holds at most one active proposal per financial year.
func (s *Service) Submit(ctx context.Context, input SubmitInput, actorID int64) (Proposal, error) {
	if strings.TrimSpace(input.Title) == "" || input.RequestedAmount <= 0 {
		return Proposal{}, fmt.Errorf("proposals: title and positive amount required: %w", shared.ErrValidation)
	}

	access, err := s.identity.Access(ctx, actorID)
	if err != nil {
		return Proposal{}, err
	}
	if !access.HasProfile || !access.Approved {
		return Proposal{}, fmt.Errorf("researcher profile not approved: %w", shared.ErrUnauthorized)
	}

	financialYearID, err := s.openings.ActiveOpening(ctx, input.GrantOpeningID)
	if err != nil {
		return Proposal{}, err
	}

	active, err := s.repo.HasActiveProposal(ctx, actorID, financialYearID)
	if err != nil {
		return Proposal{}, err
	}
	if active {
		return Proposal{}, fmt.Errorf("active proposal already exists for this financial year: %w", shared.ErrConflict)
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	proposal := Proposal{
		ResearcherID:    actorID,
		GrantOpeningID:  input.GrantOpeningID,
		FinancialYearID: financialYearID,
		Title:           strings.TrimSpace(input.Title),
		Abstract:        input.Abstract,
		RequestedAmount: input.RequestedAmount,
		Status:          StatusSubmitted,
		Priority:        priority,
		SubmittedAt:     s.now(),
	}
	id, err := s.repo.CreateProposal(ctx, proposal)
	if err != nil {
		return Proposal{}, err
	}
	proposal.ID = id
	s.recordAudit(ctx, actorID, "PROPOSAL_SUBMIT", id, map[string]any{"title": proposal.Title})
	return proposal, nil
}

// StartReview transitions SUBMITTED (or legacy RECEIVED) to
// UNDER_REVIEW and stamps the review time.
func (s *Service) StartReview(ctx context.Context, id int64, actorID int64) (Proposal, error) {
	proposal, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if proposal.Status.Terminal() {
		return Proposal{}, terminalTransition(proposal.Status)
	}
	if proposal.Status != StatusSubmitted && proposal.Status != StatusReceived {
		return Proposal{}, illegalTransition(proposal.Status, StatusUnderReview)
	}

	reviewedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProposalStatus(ctx, id, StatusUnderReview, StatusFields{ReviewedAt: &reviewedAt}); err != nil {
			return err
		}
		return tx.InsertEvaluation(ctx, Evaluation{
			ProposalID:  id,
			EvaluatorID: actorID,
			Action:      EvaluationReview,
			At:          reviewedAt,
		})
	})
	if err != nil {
		return Proposal{}, err
	}
	proposal.Status = StatusUnderReview
	proposal.ReviewedAt = &reviewedAt
	s.recordAudit(ctx, actorID, "PROPOSAL_REVIEW", id, nil)
	return proposal, nil
}

// Approve transitions UNDER_REVIEW to APPROVED and creates exactly one
// project in one transaction. The approved amount defaults to the
// requested amount.
func (s *Service) Approve(ctx context.Context, id int64, input DecisionInput, actorID int64) (Proposal, int64, error) {
	proposal, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, 0, err
	}
	if proposal.Status.Terminal() {
		return Proposal{}, 0, terminalTransition(proposal.Status)
	}
	if proposal.Status != StatusUnderReview {
		return Proposal{}, 0, illegalTransition(proposal.Status, StatusApproved)
	}

	// Duplicate check before insert; the unique index on
	// projects.proposal_id remains the final guard under concurrency.
	if _, err := s.repo.FindProjectIDByProposal(ctx, id); err == nil {
		return Proposal{}, 0, fmt.Errorf("project already exists for proposal %d: %w", id, shared.ErrConflict)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Proposal{}, 0, err
	}

	approvedAmount := input.ApprovedAmount
	if approvedAmount <= 0 {
		approvedAmount = proposal.RequestedAmount
	}
	decidedAt := s.now()

	var projectID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProposalStatus(ctx, id, StatusApproved, StatusFields{
			DecidedAt:      &decidedAt,
			ApprovedAmount: &approvedAmount,
		}); err != nil {
			return err
		}
		if err := tx.InsertEvaluation(ctx, Evaluation{
			ProposalID:  id,
			EvaluatorID: actorID,
			Action:      EvaluationApprove,
			Comment:     input.Comment,
			Score:       input.Score,
			At:          decidedAt,
		}); err != nil {
			return err
		}
		pid, err := tx.CreateProject(ctx, ProjectSeed{
			ProposalID:      id,
			SupervisorID:    actorID,
			Title:           proposal.Title,
			BudgetAllocated: approvedAmount,
			StartDate:       decidedAt,
		})
		if err != nil {
			return err
		}
		projectID = pid
		return nil
	})
	if err != nil {
		return Proposal{}, 0, err
	}

	proposal.Status = StatusApproved
	proposal.ApprovedAmount = approvedAmount
	proposal.DecidedAt = &decidedAt

	s.recordAudit(ctx, actorID, "PROPOSAL_APPROVE", id, map[string]any{"approved_amount": approvedAmount, "project_id": projectID})
	s.notifyStatusChange(ctx, proposal, actorID)
	return proposal, projectID, nil
}

// Reject transitions UNDER_REVIEW to REJECTED with a reason.
func (s *Service) Reject(ctx context.Context, id int64, input DecisionInput, actorID int64) (Proposal, error) {
	proposal, err := s.repo.GetProposal(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if proposal.Status.Terminal() {
		return Proposal{}, terminalTransition(proposal.Status)
	}
	if proposal.Status != StatusUnderReview {
		return Proposal{}, illegalTransition(proposal.Status, StatusRejected)
	}

	reason := strings.TrimSpace(input.RejectionReason)
	if reason == "" {
		reason = "Not selected for funding in this round."
	}
	decidedAt := s.now()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateProposalStatus(ctx, id, StatusRejected, StatusFields{
			DecidedAt:       &decidedAt,
			RejectionReason: &reason,
		}); err != nil {
			return err
		}
		return tx.InsertEvaluation(ctx, Evaluation{
			ProposalID:  id,
			EvaluatorID: actorID,
			Action:      EvaluationReject,
			Comment:     input.Comment,
			Score:       input.Score,
			At:          decidedAt,
		})
	})
	if err != nil {
		return Proposal{}, err
	}

	proposal.Status = StatusRejected
	proposal.RejectionReason = reason
	proposal.DecidedAt = &decidedAt

	s.recordAudit(ctx, actorID, "PROPOSAL_REJECT", id, map[string]any{"reason": reason})
	s.notifyStatusChange(ctx, proposal, actorID)
	return proposal, nil
}

// Get returns a proposal by ID.
func (s *Service) Get(ctx context.Context, id int64) (Proposal, error) {
	return s.repo.GetProposal(ctx, id)
}

// List returns proposals matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Proposal, error) {
	return s.repo.ListProposals(ctx, filter)
}

// Evaluations returns the recorded evaluations for a proposal.
func (s *Service) Evaluations(ctx context.Context, proposalID int64) ([]Evaluation, error) {
	return s.repo.ListEvaluations(ctx, proposalID)
}

// notifyStatusChange sends a best-effort notification. Failure is
// logged and never rolls back the transition.
func (s *Service) notifyStatusChange(ctx context.Context, p Proposal, actorID int64) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.ProposalStatusChanged(ctx, notify.StatusNotice{
		ProposalID:   p.ID,
		ResearcherID: p.ResearcherID,
		Title:        p.Title,
		Status:       string(p.Status),
		ActorID:      actorID,
	})
	if err != nil && s.logger != nil {
		s.logger.Error("proposal status notification", slog.Int64("proposal_id", p.ID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, proposalID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "proposal",
		EntityID: strconv.FormatInt(proposalID, 10),
		Meta:     meta,
	}); err != nil && s.logger != nil {
		s.logger.Error("record proposal audit", slog.Any("error", err))
	}
}

func terminalTransition(from Status) error {
	return fmt.Errorf("proposal in terminal state %s: %w", from, shared.ErrConflict)
}

func illegalTransition(from, to Status) error {
	return fmt.Errorf("illegal transition %s -> %s: %w", from, to, shared.ErrConflict)
}
