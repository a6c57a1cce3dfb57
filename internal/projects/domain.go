package projects

import "time"

// Project lifecycle statuses. COMPLETED is terminal.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusSuspended  Status = "SUSPENDED"
)

// Project represents funded research execution. Exactly one project
// exists per approved proposal.
type Project struct {
	ID              int64
	ProposalID      int64
	SupervisorID    int64
	Title           string
	Status          Status
	StartDate       time.Time
	EndDate         *time.Time
	Progress        int
	BudgetAllocated float64
	BudgetUtilized  float64
}
