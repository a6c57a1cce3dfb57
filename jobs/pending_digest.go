package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingDigestJob emails reviewers a digest of proposals waiting on a
// decision. Registered on a weekly cron.
type PendingDigestJob struct {
	pool   *pgxpool.Pool
	mailer *Mailer
	logger *slog.Logger
}

// NewPendingDigestJob constructs the job handler.
func NewPendingDigestJob(pool *pgxpool.Pool, mailer *Mailer, logger *slog.Logger) *PendingDigestJob {
	return &PendingDigestJob{pool: pool, mailer: mailer, logger: logger}
}

type pendingRow struct {
	title string
	email string
	days  int
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *PendingDigestJob) Handle(ctx context.Context, task *asynq.Task) error {
	rows, err := j.pool.Query(ctx, `SELECT pr.title, sup.email,
EXTRACT(DAY FROM NOW() - pr.submitted_at)::int AS waiting_days
FROM proposals pr
JOIN principals sup ON sup.role IN ('SUPERVISOR', 'ADMIN')
WHERE pr.status IN ('SUBMITTED', 'UNDER_REVIEW')
ORDER BY sup.email, pr.submitted_at ASC`)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("pending digest query", slog.Any("error", err))
		}
		return err
	}
	defer rows.Close()

	perRecipient := make(map[string][]pendingRow)
	for rows.Next() {
		var r pendingRow
		if err := rows.Scan(&r.title, &r.email, &r.days); err != nil {
			return err
		}
		perRecipient[r.email] = append(perRecipient[r.email], r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for email, pending := range perRecipient {
		var body strings.Builder
		body.WriteString("Proposals awaiting a decision:\n\n")
		for _, p := range pending {
			fmt.Fprintf(&body, "- %s (waiting %d days)\n", p.title, p.days)
		}
		task, err := NewSendEmailTask(SendEmailPayload{
			To:      email,
			Subject: fmt.Sprintf("Weekly digest: %d proposals pending review", len(pending)),
			Body:    body.String(),
		})
		if err != nil {
			return err
		}
		// Delivered inline by the worker rather than re-enqueued.
		if err := j.mailer.HandleSendEmail(ctx, task); err != nil && j.logger != nil {
			j.logger.Error("digest delivery", slog.String("to", email), slog.Any("error", err))
		}
	}
	return nil
}
