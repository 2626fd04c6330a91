package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies the message template of an outbox job
type NotificationKind string

const (
	NotificationGuestConfirmation      NotificationKind = "guest_confirmation"
	NotificationOperatorNewReservation NotificationKind = "operator_new_reservation"
	NotificationGuestUpdate            NotificationKind = "guest_update"
	NotificationGuestCancellation      NotificationKind = "guest_cancellation"
)

// NotificationJobStatus represents delivery state of an outbox job
type NotificationJobStatus string

const (
	NotificationJobPending NotificationJobStatus = "pending"
	NotificationJobSending NotificationJobStatus = "sending"
	NotificationJobSent    NotificationJobStatus = "sent"
	NotificationJobDead    NotificationJobStatus = "dead"
)

// NotificationJob is one outbound email, written in the same transaction as the
// reservation change that caused it and delivered at least once.
type NotificationJob struct {
	ID            uuid.UUID             `json:"id" db:"id"`
	ReservationID *uuid.UUID            `json:"reservation_id,omitempty" db:"reservation_id"`
	Kind          NotificationKind      `json:"kind" db:"kind"`
	Recipient     string                `json:"recipient" db:"recipient"`
	Subject       string                `json:"subject" db:"subject"`
	HTML          string                `json:"html" db:"html"`
	Text          *string               `json:"text,omitempty" db:"text"`
	Status        NotificationJobStatus `json:"status" db:"status"`
	Attempts      int                   `json:"attempts" db:"attempts"`
	LastError     *string               `json:"last_error,omitempty" db:"last_error"`
	NextAttemptAt time.Time             `json:"next_attempt_at" db:"next_attempt_at"`
	CreatedAt     time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at" db:"updated_at"`
	SentAt        *time.Time            `json:"sent_at,omitempty" db:"sent_at"`
}
