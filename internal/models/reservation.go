package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// RESERVATION STATUS
// ============================================================================

// ReservationStatus represents the lifecycle status of a reservation
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// ActiveReservationStatuses hold the room's dates and take part in conflict checks
var ActiveReservationStatuses = []ReservationStatus{ReservationStatusPending, ReservationStatusConfirmed}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusCompleted, ReservationStatusCancelled},
	ReservationStatusCompleted: {},
	ReservationStatusCancelled: {},
}

// IsValid checks if the status is one of the known values
func (s ReservationStatus) IsValid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// IsActive reports whether a reservation in this status blocks its room
func (s ReservationStatus) IsActive() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// IsTerminal reports whether no further transition is allowed
func (s ReservationStatus) IsTerminal() bool {
	next, ok := reservationTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Staying in the same status is always allowed.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a status change is not in the transition table
var ErrInvalidTransition = errors.New("invalid reservation status transition")

// ValidateTransition returns ErrInvalidTransition (wrapped) for disallowed moves
func ValidateTransition(from, to ReservationStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("unknown reservation status %q", to)
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ReservationSource records which channel created the reservation
type ReservationSource string

const (
	ReservationSourceWebsite ReservationSource = "website"
	ReservationSourceMobile  ReservationSource = "mobile"
	ReservationSourceAdmin   ReservationSource = "admin"
)

// ============================================================================
// RESERVATION
// ============================================================================

// Reservation is a guest's hold on one room for a half-open date range.
// The guest contact fields are a snapshot taken at booking time.
type Reservation struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	Reference       string            `json:"reference" db:"reference"`
	GuestName       string            `json:"guest_name" db:"guest_name"`
	GuestEmail      string            `json:"guest_email" db:"guest_email"`
	GuestPhone      *string           `json:"guest_phone,omitempty" db:"guest_phone"`
	GuestCount      int               `json:"guest_count" db:"guest_count"`
	AdultsCount     int               `json:"adults_count" db:"adults_count"`
	ChildrenCount   int               `json:"children_count" db:"children_count"`
	RoomID          uuid.UUID         `json:"room_id" db:"room_id"`
	CheckIn         Date              `json:"check_in" db:"check_in"`
	CheckOut        Date              `json:"check_out" db:"check_out"`
	TotalAmount     float64           `json:"total_amount" db:"total_amount"`
	PaidAmount      float64           `json:"paid_amount" db:"paid_amount"`
	Status          ReservationStatus `json:"status" db:"status"`
	Source          ReservationSource `json:"source" db:"source"`
	SpecialRequests *string           `json:"special_requests,omitempty" db:"special_requests"`
	AdminNotes      *string           `json:"admin_notes,omitempty" db:"admin_notes"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// Nights returns the number of billed nights
func (r *Reservation) Nights() int {
	return NightsBetween(r.CheckIn, r.CheckOut)
}

// Overlaps applies the half-open overlap test. Adjacent stays do not overlap.
func (r *Reservation) Overlaps(checkIn, checkOut Date) bool {
	return RangesOverlap(r.CheckIn, r.CheckOut, checkIn, checkOut)
}

// BalanceDue returns the unpaid part of the total
func (r *Reservation) BalanceDue() float64 {
	return r.TotalAmount - r.PaidAmount
}

// RangesOverlap reports whether [a1, a2) and [b1, b2) share at least one night
func RangesOverlap(a1, a2, b1, b2 Date) bool {
	return a1.Before(b2) && a2.After(b1)
}

// ReservationFilter narrows admin listings
type ReservationFilter struct {
	Status *ReservationStatus
	RoomID *uuid.UUID
	From   *Date // stays checking out after From
	To     *Date // stays checking in before To
	Limit  int
	Offset int
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// GuestComposition carries either adults+children or a bare guest count
type GuestComposition struct {
	GuestCount    *int `json:"guest_count,omitempty"`
	AdultsCount   *int `json:"adults_count,omitempty"`
	ChildrenCount *int `json:"children_count,omitempty"`
}

// Resolve returns adults and children. A bare guest_count is treated as adults;
// an empty composition means one adult.
func (g GuestComposition) Resolve() (adults, children int, err error) {
	switch {
	case g.AdultsCount != nil || g.ChildrenCount != nil:
		if g.AdultsCount != nil {
			adults = *g.AdultsCount
		}
		if g.ChildrenCount != nil {
			children = *g.ChildrenCount
		}
	case g.GuestCount != nil:
		adults = *g.GuestCount
	default:
		adults = 1
	}

	if adults < 0 || children < 0 {
		return 0, 0, errors.New("guest counts must not be negative")
	}
	if adults < 1 {
		return 0, 0, errors.New("at least one adult is required")
	}
	return adults, children, nil
}

// CreateReservationRequest is the guest-facing or admin booking payload
type CreateReservationRequest struct {
	GuestName       string  `json:"guest_name"`
	GuestEmail      string  `json:"guest_email"`
	GuestPhone      *string `json:"guest_phone,omitempty"`
	RoomID          string  `json:"room_id"`
	CheckIn         string  `json:"check_in"`
	CheckOut        string  `json:"check_out"`
	SpecialRequests *string `json:"special_requests,omitempty"`
	GuestComposition

	// Admin-only fields
	AdminOverride bool               `json:"admin_override,omitempty"`
	TotalAmount   *float64           `json:"total_amount,omitempty"`
	PaidAmount    *float64           `json:"paid_amount,omitempty"`
	Status        *ReservationStatus `json:"status,omitempty"`
	AdminNotes    *string            `json:"admin_notes,omitempty"`
}

// UpdateReservationRequest is a partial admin update. Nil fields are left untouched.
type UpdateReservationRequest struct {
	GuestName       *string            `json:"guest_name,omitempty"`
	GuestEmail      *string            `json:"guest_email,omitempty"`
	GuestPhone      *string            `json:"guest_phone,omitempty"`
	RoomID          *string            `json:"room_id,omitempty"`
	CheckIn         *string            `json:"check_in,omitempty"`
	CheckOut        *string            `json:"check_out,omitempty"`
	GuestCount      *int               `json:"guest_count,omitempty"`
	AdultsCount     *int               `json:"adults_count,omitempty"`
	ChildrenCount   *int               `json:"children_count,omitempty"`
	TotalAmount     *float64           `json:"total_amount,omitempty"`
	PaidAmount      *float64           `json:"paid_amount,omitempty"`
	Status          *ReservationStatus `json:"status,omitempty"`
	SpecialRequests *string            `json:"special_requests,omitempty"`
	AdminNotes      *string            `json:"admin_notes,omitempty"`
}

// AvailabilityRequest asks whether a room can be booked
type AvailabilityRequest struct {
	RoomID   string `json:"room_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	GuestComposition
}

// PricingRequest asks for a quote
type PricingRequest struct {
	RoomID   string `json:"room_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	GuestComposition
}

// ConflictingReservation is the public view of a reservation blocking a request
type ConflictingReservation struct {
	Reference string            `json:"reference"`
	CheckIn   Date              `json:"check_in"`
	CheckOut  Date              `json:"check_out"`
	Status    ReservationStatus `json:"status"`
}

// ToConflicts strips guest details from blocking reservations
func ToConflicts(reservations []Reservation) []ConflictingReservation {
	out := make([]ConflictingReservation, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, ConflictingReservation{
			Reference: r.Reference,
			CheckIn:   r.CheckIn,
			CheckOut:  r.CheckOut,
			Status:    r.Status,
		})
	}
	return out
}
