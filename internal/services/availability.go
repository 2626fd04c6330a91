package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/metrics"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AvailabilityResult is the answer to an availability query. Unavailability is
// data, not an error.
type AvailabilityResult struct {
	Available bool                            `json:"available"`
	Reason    string                          `json:"reason,omitempty"`
	Message   string                          `json:"message"`
	Conflicts []models.ConflictingReservation `json:"conflictingReservations,omitempty"`
}

// stayRequest is a parsed and ordered stay under evaluation
type stayRequest struct {
	RoomID    uuid.UUID
	CheckIn   models.Date
	CheckOut  models.Date
	Adults    int
	Children  int
	ExcludeID *uuid.UUID
}

func (s stayRequest) guests() int {
	return s.Adults + s.Children
}

// stayContext is the read-only input of the policy predicates
type stayContext struct {
	stay     stayRequest
	nights   int
	settings models.BookingSettings
	room     *models.Room
}

// stayCheck is one policy predicate. Checks run in order and the first
// failure wins.
type stayCheck func(c *stayContext) *BookingError

func checkMinStay(c *stayContext) *BookingError {
	if c.settings.MinStay != nil && c.nights < *c.settings.MinStay {
		return policyError(ReasonMinStay, "Minimum stay is %d nights", *c.settings.MinStay)
	}
	return nil
}

func checkMaxStay(c *stayContext) *BookingError {
	if c.settings.MaxStay != nil && c.nights > *c.settings.MaxStay {
		return policyError(ReasonMaxStay, "Maximum stay is %d nights", *c.settings.MaxStay)
	}
	return nil
}

func checkRoomExists(c *stayContext) *BookingError {
	if c.room == nil {
		return notFoundError(ReasonRoomNotFound, "Room not found")
	}
	return nil
}

func checkRoomStatus(c *stayContext) *BookingError {
	if !c.room.IsBookable() {
		return &BookingError{
			Kind:    KindConflict,
			Reason:  ReasonRoomUnavailable,
			Message: fmt.Sprintf("Room is currently %s and cannot be booked", c.room.Status),
		}
	}
	return nil
}

func checkCapacity(c *stayContext) *BookingError {
	if c.stay.guests() > c.room.MaxGuests {
		return policyError(ReasonCapacity, "Room accommodates at most %d guests", c.room.MaxGuests)
	}
	return nil
}

func checkClosedDates(c *stayContext) *BookingError {
	if d, closed := c.settings.FirstClosedNight(c.stay.CheckIn, c.stay.CheckOut); closed {
		return policyError(ReasonClosedDates, "We are closed on %s", d)
	}
	return nil
}

// Check orders per operation. Room-dependent checks always follow checkRoomExists.
var (
	availabilityChecks = []stayCheck{checkMinStay, checkMaxStay, checkRoomExists, checkRoomStatus, checkCapacity, checkClosedDates}
	pricingChecks      = []stayCheck{checkMinStay, checkMaxStay, checkRoomExists, checkCapacity, checkClosedDates}
	writeChecks        = []stayCheck{checkMinStay, checkMaxStay, checkClosedDates, checkRoomExists, checkRoomStatus, checkCapacity}
	sameRoomChecks     = []stayCheck{checkMinStay, checkMaxStay, checkClosedDates, checkRoomExists, checkCapacity}
)

// BookingEngine evaluates stays against the booking policy, room data and
// existing reservations. It holds no mutable state and is safe for concurrent use.
type BookingEngine struct {
	settings     *SettingsResolver
	rooms        RoomStore
	reservations ReservationStore
	currency     string
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

// NewBookingEngine creates a new booking engine
func NewBookingEngine(
	settings *SettingsResolver,
	rooms RoomStore,
	reservations ReservationStore,
	currency string,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *BookingEngine {
	return &BookingEngine{
		settings:     settings,
		rooms:        rooms,
		reservations: reservations,
		currency:     currency,
		metrics:      m,
		logger:       logger,
	}
}

// parseStay validates identifiers, dates and guest composition
func parseStay(roomID, checkIn, checkOut string, guests models.GuestComposition) (stayRequest, error) {
	var stay stayRequest

	id, err := uuid.Parse(strings.TrimSpace(roomID))
	if err != nil {
		return stay, validationError(ReasonInvalidRoom, "room_id must be a valid UUID")
	}
	stay.RoomID = id

	if stay.CheckIn, stay.CheckOut, err = parseStayDates(checkIn, checkOut); err != nil {
		return stay, err
	}

	if stay.Adults, stay.Children, err = guests.Resolve(); err != nil {
		return stay, validationError(ReasonInvalidGuests, "%s", err.Error())
	}
	return stay, nil
}

// MaxStayNights bounds any stay regardless of booking settings
const MaxStayNights = 730

func parseStayDates(checkIn, checkOut string) (models.Date, models.Date, error) {
	in, err := models.ParseDate(checkIn)
	if err != nil {
		return models.Date{}, models.Date{}, validationError(ReasonInvalidDates, "check_in: %s", err.Error())
	}
	out, err := models.ParseDate(checkOut)
	if err != nil {
		return models.Date{}, models.Date{}, validationError(ReasonInvalidDates, "check_out: %s", err.Error())
	}
	if !out.After(in) {
		return models.Date{}, models.Date{}, validationError(ReasonInvalidDates, "check_out must be after check_in")
	}
	if models.NightsBetween(in, out) > MaxStayNights {
		return models.Date{}, models.Date{}, validationError(ReasonInvalidDates, "stay cannot exceed %d nights", MaxStayNights)
	}
	return in, out, nil
}

// evaluate loads settings and room, runs checks in order and, when
// withConflicts is set, queries overlapping active reservations.
func (e *BookingEngine) evaluate(ctx context.Context, stay stayRequest, checks []stayCheck, withConflicts bool) (*stayContext, error) {
	settings, err := e.settings.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	room, err := e.rooms.GetByID(ctx, stay.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	c := &stayContext{
		stay:     stay,
		nights:   models.NightsBetween(stay.CheckIn, stay.CheckOut),
		settings: settings,
		room:     room,
	}

	for _, check := range checks {
		if be := check(c); be != nil {
			return c, be
		}
	}

	if withConflicts {
		conflicts, err := e.reservations.FindConflicts(ctx, stay.RoomID, stay.CheckIn, stay.CheckOut, stay.ExcludeID)
		if err != nil {
			return c, err
		}
		if len(conflicts) > 0 {
			return c, conflictError(conflicts)
		}
	}

	return c, nil
}

// CheckAvailability reports whether the room can be booked for the stay.
// Malformed input and a missing room are errors; policy refusals and
// conflicts are returned as an unavailable result.
func (e *BookingEngine) CheckAvailability(ctx context.Context, req models.AvailabilityRequest) (*AvailabilityResult, error) {
	stay, err := parseStay(req.RoomID, req.CheckIn, req.CheckOut, req.GuestComposition)
	if err != nil {
		return nil, err
	}

	_, err = e.evaluate(ctx, stay, availabilityChecks, true)
	if err == nil {
		e.metrics.IncAvailabilityCheck("available")
		return &AvailabilityResult{Available: true, Message: "Room is available"}, nil
	}

	be, ok := AsBookingError(err)
	if !ok || (be.Kind != KindPolicy && be.Kind != KindConflict) {
		return nil, err
	}

	result := &AvailabilityResult{Available: false, Message: be.Message, Conflicts: be.Conflicts}
	if be.Reason == ReasonBookingConflict {
		e.metrics.IncAvailabilityCheck("conflict")
		e.metrics.IncBookingConflict("precheck")
	} else {
		result.Reason = be.Reason
		e.metrics.IncAvailabilityCheck(be.Reason)
	}

	e.logger.WithFields(logrus.Fields{
		"room_id":   stay.RoomID,
		"check_in":  stay.CheckIn.String(),
		"check_out": stay.CheckOut.String(),
		"reason":    be.Reason,
	}).Debug("Room unavailable")

	return result, nil
}

// QuotePrice prices a stay after the stay-length, capacity and closed-date
// checks. Room status and existing reservations are not considered.
func (e *BookingEngine) QuotePrice(ctx context.Context, req models.PricingRequest) (*PriceQuote, error) {
	stay, err := parseStay(req.RoomID, req.CheckIn, req.CheckOut, req.GuestComposition)
	if err != nil {
		return nil, err
	}

	c, err := e.evaluate(ctx, stay, pricingChecks, false)
	if err != nil {
		return nil, err
	}

	quote, err := CalculatePrice(c.room, c.settings, stay.CheckIn, stay.CheckOut, stay.Adults, stay.Children)
	if err != nil {
		return nil, validationError(ReasonInvalidDates, "%s", err.Error())
	}
	quote.Currency = e.currency
	return quote, nil
}
