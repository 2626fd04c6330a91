package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	sqlStateUniqueViolation    = "23505"
	sqlStateExclusionViolation = "23P01"
)

var (
	// ErrBookingOverlap means an active reservation already holds the room for
	// part of the requested range.
	ErrBookingOverlap = errors.New("room already booked for overlapping dates")

	// ErrDuplicateReference means the generated reservation reference is taken
	ErrDuplicateReference = errors.New("reservation reference already exists")
)

// sqlState extracts the SQLSTATE code from either driver's error type
func sqlState(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

// mapReservationError translates constraint violations raised while writing a
// reservation into the package's sentinel errors. Other errors pass through.
func mapReservationError(err error) error {
	code, constraint, ok := sqlState(err)
	if !ok {
		return err
	}
	switch code {
	case sqlStateExclusionViolation:
		return ErrBookingOverlap
	case sqlStateUniqueViolation:
		if constraint == "" || constraint == "reservations_reference_key" {
			return ErrDuplicateReference
		}
	}
	return err
}
