package proposals

import "time"

// Proposal lifecycle statuses. RECEIVED is a legacy initial value still
// present in old rows; no transition produces it, but review accepts it
// as an alias of SUBMITTED so those rows stay actionable.
type Status string

const (
	StatusReceived    Status = "RECEIVED"
	StatusSubmitted   Status = "SUBMITTED"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority buckets for review ordering.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Proposal represents a funding request. Proposals are never deleted;
// the status column carries the whole lifecycle.
type Proposal struct {
	ID              int64
	ResearcherID    int64
	GrantOpeningID  int64
	FinancialYearID int64
	Title           string
	Abstract        string
	RequestedAmount float64
	ApprovedAmount  float64
	Status          Status
	Priority        Priority
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
	DecidedAt       *time.Time
	RejectionReason string
}

// EvaluationAction labels the review action an evaluation records.
type EvaluationAction string

const (
	EvaluationReview  EvaluationAction = "REVIEW"
	EvaluationApprove EvaluationAction = "APPROVE"
	EvaluationReject  EvaluationAction = "REJECT"
)

// Evaluation captures reviewer commentary for a transition. It is a
// logging side effect, not a gate.
type Evaluation struct {
	ID          int64
	ProposalID  int64
	EvaluatorID int64
	Action      EvaluationAction
	Comment     string
	Score       int
	At          time.Time
}

// ProjectSeed carries the fields for the project auto-created when a
// proposal is approved.
type ProjectSeed struct {
	ProposalID      int64
	SupervisorID    int64
	Title           string
	BudgetAllocated float64
	StartDate       time.Time
}
