// Package notify dispatches best-effort status notifications. Delivery
// failures are reported to the caller, which logs and swallows them:
// a lost email never rolls back a status transition.
package notify

import "context"

// StatusNotice describes a proposal status change to announce.
type StatusNotice struct {
	ProposalID   int64
	ResearcherID int64
	Title        string
	Status       string
	ActorID      int64
}

// Notifier sends templated notifications.
type Notifier interface {
	ProposalStatusChanged(ctx context.Context, n StatusNotice) error
}
