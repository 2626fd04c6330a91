package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/riadtaziri/booking-backend/internal/models"
)

const notificationJobColumns = `
	id, reservation_id, kind, recipient, subject, html, text, status, attempts,
	last_error, next_attempt_at, created_at, updated_at, sent_at`

// NotificationRepository is the outbox of pending emails
type NotificationRepository struct {
	db DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// insertJobs writes outbox rows inside the caller's transaction
func insertJobs(ctx context.Context, tx *sqlx.Tx, reservationID uuid.UUID, jobs []models.NotificationJob) error {
	query := `
		INSERT INTO notification_jobs (
			id, reservation_id, kind, recipient, subject, html, text, status,
			attempts, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $10)
	`
	now := time.Now()
	for i := range jobs {
		job := &jobs[i]
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		rid := reservationID
		job.ReservationID = &rid
		job.Status = models.NotificationJobPending
		if job.NextAttemptAt.IsZero() {
			job.NextAttemptAt = now
		}
		job.CreatedAt = now
		job.UpdatedAt = now

		_, err := tx.ExecContext(ctx, query,
			job.ID, job.ReservationID, job.Kind, job.Recipient, job.Subject,
			job.HTML, job.Text, job.Status, job.NextAttemptAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s notification: %w", job.Kind, err)
		}
	}
	return nil
}

// ClaimDue marks up to limit due jobs as sending and returns them. Jobs left in
// sending longer than staleAfter (a crashed worker) are claimed again.
// SKIP LOCKED lets several instances dispatch without picking the same job.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]models.NotificationJob, error) {
	query := `
		UPDATE notification_jobs
		SET status = 'sending', updated_at = $1
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE (status = 'pending' AND next_attempt_at <= $1)
			   OR (status = 'sending' AND updated_at < $2)
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationJobColumns

	jobs := []models.NotificationJob{}
	if err := r.db.SelectContext(ctx, &jobs, query, now, now.Add(-staleAfter), limit); err != nil {
		return nil, fmt.Errorf("failed to claim notification jobs: %w", err)
	}
	return jobs, nil
}

// MarkSent records a successful delivery
func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'sent', attempts = $2, last_error = NULL, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id, attempts)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkRetry puts a failed job back in the queue for a later attempt
func (r *NotificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'pending', attempts = $2, next_attempt_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1
	`, id, attempts, nextAttemptAt, lastError)
	if err != nil {
		return fmt.Errorf("failed to reschedule notification: %w", err)
	}
	return nil
}

// MarkDead gives up on a job after its final attempt
func (r *NotificationRepository) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'dead', attempts = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1
	`, id, attempts, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark notification dead: %w", err)
	}
	return nil
}

// CountPending returns the number of jobs waiting to be delivered
func (r *NotificationRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notification_jobs WHERE status IN ('pending', 'sending')`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

// PurgeSent deletes delivered jobs older than the cutoff
func (r *NotificationRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notification_jobs WHERE status = 'sent' AND sent_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sent notifications: %w", err)
	}
	return result.RowsAffected()
}
