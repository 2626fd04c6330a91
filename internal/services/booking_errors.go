package services

import (
	"errors"
	"fmt"

	"github.com/riadtaziri/booking-backend/internal/models"
)

// ErrorKind classifies booking failures so the HTTP layer can map them 1:1
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // malformed or missing input
	KindPolicy     ErrorKind = "policy"     // a legitimate "no" from booking rules
	KindConflict   ErrorKind = "conflict"   // dates taken or room not bookable
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
)

// Reason codes returned to callers
const (
	ReasonMinStay             = "min_stay"
	ReasonMaxStay             = "max_stay"
	ReasonRoomUnavailable     = "room_unavailable"
	ReasonCapacity            = "capacity"
	ReasonClosedDates         = "closed_dates"
	ReasonBookingConflict     = "booking_conflict"
	ReasonMissingFields       = "missing_fields"
	ReasonInvalidDates        = "invalid_dates"
	ReasonInvalidGuests       = "invalid_guests"
	ReasonInvalidEmail        = "invalid_email"
	ReasonInvalidPhone        = "invalid_phone"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonInvalidStatus       = "invalid_status"
	ReasonInvalidTransition   = "invalid_transition"
	ReasonRoomNotFound        = "room_not_found"
	ReasonReservationNotFound = "reservation_not_found"
	ReasonAdminRequired       = "admin_required"
	ReasonInvalidSettings     = "invalid_settings"
	ReasonInvalidRoom         = "invalid_room_id"
	ReasonInvalidName         = "invalid_name"
)

// BookingError is the typed failure returned by availability, pricing and
// reservation operations.
type BookingError struct {
	Kind      ErrorKind
	Reason    string
	Message   string
	Conflicts []models.ConflictingReservation
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// AsBookingError unwraps err into a *BookingError when it is one
func AsBookingError(err error) (*BookingError, bool) {
	var be *BookingError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func validationError(reason, format string, args ...interface{}) *BookingError {
	return &BookingError{Kind: KindValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func policyError(reason, format string, args ...interface{}) *BookingError {
	return &BookingError{Kind: KindPolicy, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(reason, message string) *BookingError {
	return &BookingError{Kind: KindNotFound, Reason: reason, Message: message}
}

func conflictError(conflicts []models.Reservation) *BookingError {
	return &BookingError{
		Kind:      KindConflict,
		Reason:    ReasonBookingConflict,
		Message:   "Room is already booked for the selected dates",
		Conflicts: models.ToConflicts(conflicts),
	}
}
