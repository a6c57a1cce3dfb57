package identity

import "time"

// Principal represents a registered account.
type Principal struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResearcherProfile is attached to at most one principal. It is created
// unapproved at registration and transitions to approved exactly once.
type ResearcherProfile struct {
	PrincipalID  int64
	DepartmentID int64
	IsApproved   bool
	ReviewedAt   *time.Time
	ReviewedBy   *int64
	CreatedAt    time.Time
}
