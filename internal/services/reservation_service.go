package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/database"
	"github.com/riadtaziri/booking-backend/internal/metrics"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/pkg/validator"
	"github.com/sirupsen/logrus"
)

// Actor is the authenticated caller of a write, nil for anonymous guests
type Actor struct {
	UserID  uuid.UUID
	Email   string
	IsAdmin bool
}

func (a *Actor) admin() bool {
	return a != nil && a.IsAdmin
}

// Kicker wakes the notification dispatcher
type Kicker interface {
	Kick()
}

// ReservationService creates and edits reservations
type ReservationService struct {
	engine            *BookingEngine
	renderer          *NotificationRenderer
	contacts          *validator.ContactValidator
	newReference      ReferenceGenerator
	referenceAttempts int
	dispatcher        Kicker
	metrics           *metrics.Metrics
	logger            *logrus.Logger
}

// NewReservationService creates a new reservation service
func NewReservationService(
	engine *BookingEngine,
	renderer *NotificationRenderer,
	referenceAttempts int,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *ReservationService {
	if referenceAttempts <= 0 {
		referenceAttempts = 1
	}
	return &ReservationService{
		engine:            engine,
		renderer:          renderer,
		contacts:          validator.NewContactValidator(),
		newReference:      NewReference,
		referenceAttempts: referenceAttempts,
		metrics:           m,
		logger:            logger,
	}
}

// SetDispatcher registers the dispatcher woken after writes that enqueue mail
func (s *ReservationService) SetDispatcher(k Kicker) {
	s.dispatcher = k
}

func (s *ReservationService) kick() {
	if s.dispatcher != nil {
		s.dispatcher.Kick()
	}
}

// Create validates, prices and stores a new reservation together with its
// guest and operator notifications.
func (s *ReservationService) Create(
	ctx context.Context,
	req models.CreateReservationRequest,
	actor *Actor,
	source models.ReservationSource,
) (*models.Reservation, error) {
	var missing []string
	if strings.TrimSpace(req.GuestName) == "" {
		missing = append(missing, "guest_name")
	}
	if strings.TrimSpace(req.GuestEmail) == "" {
		missing = append(missing, "guest_email")
	}
	if strings.TrimSpace(req.RoomID) == "" {
		missing = append(missing, "room_id")
	}
	if strings.TrimSpace(req.CheckIn) == "" {
		missing = append(missing, "check_in")
	}
	if strings.TrimSpace(req.CheckOut) == "" {
		missing = append(missing, "check_out")
	}
	if len(missing) > 0 {
		return nil, validationError(ReasonMissingFields, "Missing required fields: %s", strings.Join(missing, ", "))
	}

	name, err := s.contacts.ValidateName(req.GuestName)
	if err != nil {
		return nil, validationError(ReasonInvalidName, "%s", err.Error())
	}
	email, err := s.contacts.ValidateEmail(req.GuestEmail)
	if err != nil {
		return nil, validationError(ReasonInvalidEmail, "%s", err.Error())
	}
	phone, err := s.normalizePhone(req.GuestPhone)
	if err != nil {
		return nil, err
	}

	isAdmin := actor.admin()
	if req.AdminOverride {
		if !isAdmin {
			return nil, &BookingError{Kind: KindForbidden, Reason: ReasonAdminRequired, Message: "admin_override requires an administrator"}
		}
		if req.TotalAmount == nil || *req.TotalAmount < 0 {
			return nil, validationError(ReasonInvalidAmount, "admin_override requires a non-negative total_amount")
		}
	}

	status := models.ReservationStatusPending
	paid := 0.0
	var adminNotes *string
	if isAdmin {
		if req.Status != nil {
			if !req.Status.IsValid() {
				return nil, validationError(ReasonInvalidStatus, "unknown status %q", *req.Status)
			}
			status = *req.Status
		}
		if req.PaidAmount != nil {
			if *req.PaidAmount < 0 {
				return nil, validationError(ReasonInvalidAmount, "paid_amount must not be negative")
			}
			paid = *req.PaidAmount
		}
		adminNotes = trimmedOrNil(req.AdminNotes)
	}

	stay, err := parseStay(req.RoomID, req.CheckIn, req.CheckOut, req.GuestComposition)
	if err != nil {
		return nil, err
	}

	c, err := s.engine.evaluate(ctx, stay, writeChecks, status.IsActive())
	if err != nil {
		if be, ok := AsBookingError(err); ok && be.Reason == ReasonBookingConflict {
			s.metrics.IncBookingConflict("precheck")
		}
		return nil, err
	}

	var total float64
	if req.AdminOverride {
		total = *req.TotalAmount
	} else {
		quote, err := CalculatePrice(c.room, c.settings, stay.CheckIn, stay.CheckOut, stay.Adults, stay.Children)
		if err != nil {
			return nil, validationError(ReasonInvalidDates, "%s", err.Error())
		}
		total = quote.TotalPrice
	}

	res := &models.Reservation{
		GuestName:       name,
		GuestEmail:      email,
		GuestPhone:      phone,
		GuestCount:      stay.guests(),
		AdultsCount:     stay.Adults,
		ChildrenCount:   stay.Children,
		RoomID:          stay.RoomID,
		CheckIn:         stay.CheckIn,
		CheckOut:        stay.CheckOut,
		TotalAmount:     total,
		PaidAmount:      paid,
		Status:          status,
		Source:          source,
		SpecialRequests: trimmedOrNil(req.SpecialRequests),
		AdminNotes:      adminNotes,
	}

	if err := s.insertWithFreshReference(ctx, res, c.room); err != nil {
		if errors.Is(err, database.ErrBookingOverlap) {
			s.metrics.IncBookingConflict("locked")
			conflicts, lookupErr := s.engine.reservations.FindConflicts(ctx, res.RoomID, res.CheckIn, res.CheckOut, nil)
			if lookupErr != nil {
				s.logger.WithError(lookupErr).Warn("Failed to load conflicting reservations")
			}
			return nil, conflictError(conflicts)
		}
		return nil, err
	}

	s.metrics.IncReservationCreated(string(source))
	s.logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"reference":      res.Reference,
		"room_id":        res.RoomID,
		"check_in":       res.CheckIn.String(),
		"check_out":      res.CheckOut.String(),
		"source":         res.Source,
	}).Info("Reservation created")

	s.kick()
	return res, nil
}

// insertWithFreshReference retries with a new reference when the generated one
// is already taken
func (s *ReservationService) insertWithFreshReference(ctx context.Context, res *models.Reservation, room *models.Room) error {
	var err error
	for attempt := 0; attempt < s.referenceAttempts; attempt++ {
		ref, genErr := s.newReference()
		if genErr != nil {
			return genErr
		}
		res.Reference = ref

		jobs, renderErr := s.renderer.ForCreate(res, room)
		if renderErr != nil {
			return renderErr
		}

		err = s.engine.reservations.InsertExclusive(ctx, res, jobs)
		if !errors.Is(err, database.ErrDuplicateReference) {
			return err
		}
		s.logger.WithField("reference", ref).Warn("Reservation reference collision, regenerating")
	}
	return fmt.Errorf("failed to allocate a unique reference after %d attempts: %w", s.referenceAttempts, err)
}

// Update applies a partial admin edit. Changes to the stay are re-validated
// against policy and existing reservations, and guest-visible changes enqueue
// an update or cancellation email.
func (s *ReservationService) Update(ctx context.Context, id uuid.UUID, req models.UpdateReservationRequest) (*models.Reservation, error) {
	existing, err := s.engine.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFoundError(ReasonReservationNotFound, "Reservation not found")
	}

	updated := *existing
	if err := s.applyUpdate(&updated, req); err != nil {
		return nil, err
	}

	if req.Status != nil {
		if err := models.ValidateTransition(existing.Status, updated.Status); err != nil {
			reason := ReasonInvalidTransition
			if !updated.Status.IsValid() {
				reason = ReasonInvalidStatus
			}
			return nil, validationError(reason, "%s", err.Error())
		}
	}

	roomChanged := updated.RoomID != existing.RoomID
	stayChanged := roomChanged ||
		!updated.CheckIn.Equal(existing.CheckIn) ||
		!updated.CheckOut.Equal(existing.CheckOut) ||
		updated.AdultsCount != existing.AdultsCount ||
		updated.ChildrenCount != existing.ChildrenCount

	var room *models.Room
	if stayChanged {
		stay := stayRequest{
			RoomID:    updated.RoomID,
			CheckIn:   updated.CheckIn,
			CheckOut:  updated.CheckOut,
			Adults:    updated.AdultsCount,
			Children:  updated.ChildrenCount,
			ExcludeID: &updated.ID,
		}

		checks := []stayCheck{checkRoomExists}
		active := updated.Status.IsActive()
		if active {
			checks = sameRoomChecks
			if roomChanged {
				checks = writeChecks
			}
		}

		c, err := s.engine.evaluate(ctx, stay, checks, active)
		if err != nil {
			if be, ok := AsBookingError(err); ok && be.Reason == ReasonBookingConflict {
				s.metrics.IncBookingConflict("precheck")
			}
			return nil, err
		}
		room = c.room

		if req.TotalAmount == nil {
			quote, err := CalculatePrice(c.room, c.settings, stay.CheckIn, stay.CheckOut, stay.Adults, stay.Children)
			if err != nil {
				return nil, validationError(ReasonInvalidDates, "%s", err.Error())
			}
			updated.TotalAmount = quote.TotalPrice
		}
	}

	var jobs []models.NotificationJob
	if guestVisibleChange(existing, &updated) {
		if room == nil {
			if room, err = s.engine.rooms.GetByID(ctx, updated.RoomID); err != nil {
				s.logger.WithError(err).Warn("Failed to load room for notification")
			}
		}
		if jobs, err = s.renderer.ForUpdate(&updated, room); err != nil {
			return nil, err
		}
	}

	if err := s.engine.reservations.UpdateExclusive(ctx, &updated, existing.RoomID, jobs); err != nil {
		switch {
		case errors.Is(err, database.ErrBookingOverlap):
			s.metrics.IncBookingConflict("locked")
			conflicts, lookupErr := s.engine.reservations.FindConflicts(ctx, updated.RoomID, updated.CheckIn, updated.CheckOut, &updated.ID)
			if lookupErr != nil {
				s.logger.WithError(lookupErr).Warn("Failed to load conflicting reservations")
			}
			return nil, conflictError(conflicts)
		case errors.Is(err, sql.ErrNoRows):
			return nil, notFoundError(ReasonReservationNotFound, "Reservation not found")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id": updated.ID,
		"reference":      updated.Reference,
		"status":         updated.Status,
		"notified":       len(jobs) > 0,
	}).Info("Reservation updated")

	if len(jobs) > 0 {
		s.kick()
	}
	return &updated, nil
}

func (s *ReservationService) applyUpdate(res *models.Reservation, req models.UpdateReservationRequest) error {
	if req.GuestName != nil {
		name, err := s.contacts.ValidateName(*req.GuestName)
		if err != nil {
			return validationError(ReasonInvalidName, "%s", err.Error())
		}
		res.GuestName = name
	}
	if req.GuestEmail != nil {
		email, err := s.contacts.ValidateEmail(*req.GuestEmail)
		if err != nil {
			return validationError(ReasonInvalidEmail, "%s", err.Error())
		}
		res.GuestEmail = email
	}
	if req.GuestPhone != nil {
		phone, err := s.normalizePhone(req.GuestPhone)
		if err != nil {
			return err
		}
		res.GuestPhone = phone
	}
	if req.RoomID != nil {
		roomID, err := uuid.Parse(strings.TrimSpace(*req.RoomID))
		if err != nil {
			return validationError(ReasonInvalidRoom, "room_id must be a valid UUID")
		}
		res.RoomID = roomID
	}

	if req.CheckIn != nil || req.CheckOut != nil {
		checkIn, checkOut := res.CheckIn.String(), res.CheckOut.String()
		if req.CheckIn != nil {
			checkIn = *req.CheckIn
		}
		if req.CheckOut != nil {
			checkOut = *req.CheckOut
		}
		in, out, err := parseStayDates(checkIn, checkOut)
		if err != nil {
			return err
		}
		res.CheckIn, res.CheckOut = in, out
	}

	if req.AdultsCount != nil || req.ChildrenCount != nil || req.GuestCount != nil {
		var guests models.GuestComposition
		if req.AdultsCount != nil || req.ChildrenCount != nil {
			adults, children := res.AdultsCount, res.ChildrenCount
			if req.AdultsCount != nil {
				adults = *req.AdultsCount
			}
			if req.ChildrenCount != nil {
				children = *req.ChildrenCount
			}
			guests = models.GuestComposition{AdultsCount: &adults, ChildrenCount: &children}
		} else {
			guests = models.GuestComposition{GuestCount: req.GuestCount}
		}
		adults, children, err := guests.Resolve()
		if err != nil {
			return validationError(ReasonInvalidGuests, "%s", err.Error())
		}
		res.AdultsCount, res.ChildrenCount = adults, children
		res.GuestCount = adults + children
	}

	if req.TotalAmount != nil {
		if *req.TotalAmount < 0 {
			return validationError(ReasonInvalidAmount, "total_amount must not be negative")
		}
		res.TotalAmount = *req.TotalAmount
	}
	if req.PaidAmount != nil {
		if *req.PaidAmount < 0 {
			return validationError(ReasonInvalidAmount, "paid_amount must not be negative")
		}
		res.PaidAmount = *req.PaidAmount
	}
	if req.Status != nil {
		res.Status = *req.Status
	}
	if req.SpecialRequests != nil {
		res.SpecialRequests = trimmedOrNil(req.SpecialRequests)
	}
	if req.AdminNotes != nil {
		res.AdminNotes = trimmedOrNil(req.AdminNotes)
	}
	return nil
}

// guestVisibleChange reports whether the guest should hear about the edit
func guestVisibleChange(before, after *models.Reservation) bool {
	return before.Status != after.Status ||
		!before.CheckIn.Equal(after.CheckIn) ||
		!before.CheckOut.Equal(after.CheckOut) ||
		before.RoomID != after.RoomID ||
		before.GuestCount != after.GuestCount ||
		before.TotalAmount != after.TotalAmount
}

func (s *ReservationService) normalizePhone(phone *string) (*string, error) {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil, nil
	}
	normalized, err := s.contacts.ValidatePhone(*phone)
	if err != nil {
		return nil, validationError(ReasonInvalidPhone, "%s", err.Error())
	}
	return &normalized, nil
}

// Get returns one reservation
func (s *ReservationService) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	res, err := s.engine.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, notFoundError(ReasonReservationNotFound, "Reservation not found")
	}
	return res, nil
}

// GetByReference returns the reservation only when email matches the guest's
// address, so a reference alone does not reveal a booking.
func (s *ReservationService) GetByReference(ctx context.Context, reference, email string) (*models.Reservation, error) {
	if strings.TrimSpace(reference) == "" || strings.TrimSpace(email) == "" {
		return nil, validationError(ReasonMissingFields, "reference and email are required")
	}
	res, err := s.engine.reservations.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if res == nil || !strings.EqualFold(res.GuestEmail, strings.TrimSpace(email)) {
		return nil, notFoundError(ReasonReservationNotFound, "Reservation not found")
	}
	return res, nil
}

// List returns a page of reservations and the total match count
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	return s.engine.reservations.List(ctx, filter)
}

// Delete removes a reservation permanently
func (s *ReservationService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.engine.reservations.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundError(ReasonReservationNotFound, "Reservation not found")
	}
	if err != nil {
		return err
	}
	s.logger.WithField("reservation_id", id).Info("Reservation deleted")
	return nil
}

// CompletePastStays closes confirmed stays that have checked out
func (s *ReservationService) CompletePastStays(ctx context.Context) (int64, error) {
	return s.engine.reservations.CompletePastStays(ctx, models.Today())
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
