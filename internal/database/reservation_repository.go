package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/riadtaziri/booking-backend/internal/models"
)

const reservationColumns = `
	id, reference, guest_name, guest_email, guest_phone, guest_count, adults_count,
	children_count, room_id, check_in, check_out, total_amount, paid_amount, status,
	source, special_requests, admin_notes, created_at, updated_at`

// activeStatusClause matches reservations that hold their room's dates
const activeStatusClause = `status IN ('pending', 'confirmed')`

// ReservationRepository handles database operations for reservations
type ReservationRepository struct {
	db DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// GetByID retrieves a reservation by ID. Returns nil, nil when it does not exist.
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.GetContext(ctx, &res, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &res, nil
}

// GetByReference retrieves a reservation by its public reference
func (r *ReservationRepository) GetByReference(ctx context.Context, reference string) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.GetContext(ctx, &res,
		`SELECT `+reservationColumns+` FROM reservations WHERE reference = $1`,
		strings.ToUpper(strings.TrimSpace(reference)),
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation by reference: %w", err)
	}
	return &res, nil
}

// FindConflicts returns active reservations for the room whose stay overlaps
// [checkIn, checkOut). excludeID skips the reservation being edited.
func (r *ReservationRepository) FindConflicts(
	ctx context.Context,
	roomID uuid.UUID,
	checkIn, checkOut models.Date,
	excludeID *uuid.UUID,
) ([]models.Reservation, error) {
	return findConflicts(ctx, r.db, roomID, checkIn, checkOut, excludeID)
}

type selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func findConflicts(
	ctx context.Context,
	q selecter,
	roomID uuid.UUID,
	checkIn, checkOut models.Date,
	excludeID *uuid.UUID,
) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = $1
		  AND ` + activeStatusClause + `
		  AND check_in < $3
		  AND check_out > $2`
	args := []interface{}{roomID, checkIn, checkOut}
	if excludeID != nil {
		query += ` AND id <> $4`
		args = append(args, *excludeID)
	}
	query += ` ORDER BY check_in`

	conflicts := []models.Reservation{}
	if err := q.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query conflicting reservations: %w", err)
	}
	return conflicts, nil
}

// lockRooms serializes writers per room for the rest of the transaction.
// Rooms are locked in a stable order so two writers never wait on each other.
func lockRooms(ctx context.Context, tx *sqlx.Tx, roomIDs ...uuid.UUID) error {
	keys := make([]string, 0, len(roomIDs))
	seen := make(map[uuid.UUID]bool, len(roomIDs))
	for _, id := range roomIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, id.String())
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "room:"+key); err != nil {
			return fmt.Errorf("failed to lock room %s: %w", key, err)
		}
	}
	return nil
}

// InsertExclusive persists a new reservation and its notification jobs in one
// transaction. The room is locked and re-checked for overlaps before the insert,
// so of two concurrent requests for the same dates only one commits.
func (r *ReservationRepository) InsertExclusive(ctx context.Context, res *models.Reservation, jobs []models.NotificationJob) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRooms(ctx, tx, res.RoomID); err != nil {
		return err
	}

	if res.Status.IsActive() {
		conflicts, err := findConflicts(ctx, tx, res.RoomID, res.CheckIn, res.CheckOut, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrBookingOverlap
		}
	}

	now := time.Now()
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = now
	res.UpdatedAt = now

	query := `
		INSERT INTO reservations (
			id, reference, guest_name, guest_email, guest_phone, guest_count, adults_count,
			children_count, room_id, check_in, check_out, total_amount, paid_amount, status,
			source, special_requests, admin_notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	_, err = tx.ExecContext(ctx, query,
		res.ID, res.Reference, res.GuestName, res.GuestEmail, res.GuestPhone,
		res.GuestCount, res.AdultsCount, res.ChildrenCount, res.RoomID,
		res.CheckIn, res.CheckOut, res.TotalAmount, res.PaidAmount, res.Status,
		res.Source, res.SpecialRequests, res.AdminNotes, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return mapReservationError(err)
	}

	if err := insertJobs(ctx, tx, res.ID, jobs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapReservationError(fmt.Errorf("failed to commit reservation: %w", err))
	}
	return nil
}

// UpdateExclusive writes all mutable fields of an existing reservation together
// with its notification jobs. previousRoomID is the room held before the edit;
// both rooms are locked when the reservation moves.
func (r *ReservationRepository) UpdateExclusive(
	ctx context.Context,
	res *models.Reservation,
	previousRoomID uuid.UUID,
	jobs []models.NotificationJob,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockRooms(ctx, tx, previousRoomID, res.RoomID); err != nil {
		return err
	}

	if res.Status.IsActive() {
		conflicts, err := findConflicts(ctx, tx, res.RoomID, res.CheckIn, res.CheckOut, &res.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrBookingOverlap
		}
	}

	res.UpdatedAt = time.Now()

	query := `
		UPDATE reservations
		SET guest_name = $2, guest_email = $3, guest_phone = $4, guest_count = $5,
		    adults_count = $6, children_count = $7, room_id = $8, check_in = $9,
		    check_out = $10, total_amount = $11, paid_amount = $12, status = $13,
		    special_requests = $14, admin_notes = $15, updated_at = $16
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query,
		res.ID, res.GuestName, res.GuestEmail, res.GuestPhone, res.GuestCount,
		res.AdultsCount, res.ChildrenCount, res.RoomID, res.CheckIn, res.CheckOut,
		res.TotalAmount, res.PaidAmount, res.Status, res.SpecialRequests,
		res.AdminNotes, res.UpdatedAt,
	)
	if err != nil {
		return mapReservationError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := insertJobs(ctx, tx, res.ID, jobs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapReservationError(fmt.Errorf("failed to commit reservation update: %w", err))
	}
	return nil
}

// List returns reservations matching the filter plus the total match count
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		where = append(where, "status = "+arg(*filter.Status))
	}
	if filter.RoomID != nil {
		where = append(where, "room_id = "+arg(*filter.RoomID))
	}
	if filter.From != nil {
		where = append(where, "check_out > "+arg(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "check_in < "+arg(*filter.To))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reservations`+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations` + whereSQL +
		` ORDER BY check_in DESC, created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)

	reservations := []models.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, total, nil
}

// Delete removes a reservation. Its pending notification jobs go with it.
func (r *ReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompletePastStays marks confirmed reservations whose check-out is before today
// as completed and returns how many changed.
func (r *ReservationRepository) CompletePastStays(ctx context.Context, today models.Date) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'confirmed' AND check_out < $1
	`, today)
	if err != nil {
		return 0, fmt.Errorf("failed to complete past stays: %w", err)
	}
	return result.RowsAffected()
}
