package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
)

// RoomStore is the room persistence used by the booking services
type RoomStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	List(ctx context.Context) ([]models.Room, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error
}

// ReservationStore is the reservation persistence used by the booking services.
// InsertExclusive and UpdateExclusive serialize writers per room and return
// database.ErrBookingOverlap when the dates are taken.
type ReservationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	GetByReference(ctx context.Context, reference string) (*models.Reservation, error)
	FindConflicts(ctx context.Context, roomID uuid.UUID, checkIn, checkOut models.Date, excludeID *uuid.UUID) ([]models.Reservation, error)
	InsertExclusive(ctx context.Context, res *models.Reservation, jobs []models.NotificationJob) error
	UpdateExclusive(ctx context.Context, res *models.Reservation, previousRoomID uuid.UUID, jobs []models.NotificationJob) error
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CompletePastStays(ctx context.Context, today models.Date) (int64, error)
}

// NotificationStore is the outbox persistence used by the dispatcher
type NotificationStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]models.NotificationJob, error)
	MarkSent(ctx context.Context, id uuid.UUID, attempts int) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error
	CountPending(ctx context.Context) (int, error)
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}
