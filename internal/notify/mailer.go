package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-grants/meridian/jobs"
)

// RecipientSource resolves the email address for a principal.
type RecipientSource interface {
	EmailFor(ctx context.Context, principalID int64) (string, error)
}

// AsynqNotifier enqueues notification emails onto the background queue.
type AsynqNotifier struct {
	client     *asynq.Client
	recipients RecipientSource
	logger     *slog.Logger
}

// NewAsynqNotifier constructs an AsynqNotifier.
func NewAsynqNotifier(client *asynq.Client, recipients RecipientSource, logger *slog.Logger) *AsynqNotifier {
	return &AsynqNotifier{client: client, recipients: recipients, logger: logger}
}

// ProposalStatusChanged enqueues a status-change email for the
// proposal's researcher.
func (n *AsynqNotifier) ProposalStatusChanged(ctx context.Context, notice StatusNotice) error {
	to, err := n.recipients.EmailFor(ctx, notice.ResearcherID)
	if err != nil {
		return fmt.Errorf("notify: resolve recipient: %w", err)
	}
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{
		To:      to,
		Subject: fmt.Sprintf("Proposal %q is now %s", notice.Title, notice.Status),
		Body: fmt.Sprintf(
			"Your proposal %q (reference %d) has moved to status %s.\n\nMeridian Research Grants Office",
			notice.Title, notice.ProposalID, notice.Status,
		),
	})
	if err != nil {
		return err
	}
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueMail)); err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}

var _ Notifier = (*AsynqNotifier)(nil)
