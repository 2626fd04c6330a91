package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createReq(roomID uuid.UUID, checkIn, checkOut string) models.CreateReservationRequest {
	return models.CreateReservationRequest{
		GuestName:  "Amina Berrada",
		GuestEmail: "Amina@Example.com",
		GuestPhone: strPtr("06 12 34 56 78"),
		RoomID:     roomID.String(),
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	}
}

var adminActor = &Actor{UserID: uuid.New(), Email: "desk@riad.local", IsAdmin: true}

func requireBookingError(t *testing.T, err error, kind ErrorKind, reason string) *BookingError {
	t.Helper()
	be, ok := AsBookingError(err)
	require.True(t, ok, "expected BookingError, got %v", err)
	assert.Equal(t, kind, be.Kind)
	assert.Equal(t, reason, be.Reason)
	return be
}

func TestCreateReservation(t *testing.T) {
	room := testRoom("zellige", 100, 4)
	env := newTestEnv(t, &models.BookingSettings{IncludedAdults: intPtr(2), ExtraAdultFee: floatPtr(20)}, room)
	ctx := context.Background()

	req := createReq(room.ID, "2024-06-01", "2024-06-04")
	req.AdultsCount = intPtr(3)
	req.SpecialRequests = strPtr("  Late arrival  ")

	res, err := env.service.Create(ctx, req, nil, models.ReservationSourceWebsite)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.True(t, strings.HasPrefix(res.Reference, "RES-"))
	assert.Equal(t, models.ReservationStatusPending, res.Status)
	assert.Equal(t, models.ReservationSourceWebsite, res.Source)
	assert.Equal(t, "amina@example.com", res.GuestEmail)
	require.NotNil(t, res.GuestPhone)
	assert.Equal(t, "+212612345678", *res.GuestPhone)
	assert.Equal(t, 3, res.GuestCount)
	assert.Equal(t, 360.0, res.TotalAmount)
	assert.Equal(t, 0.0, res.PaidAmount)
	assert.Equal(t, "Late arrival", *res.SpecialRequests)

	// Stored price matches what the caller saw
	stored, err := env.service.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.TotalAmount, stored.TotalAmount)

	quote, err := env.engine.QuotePrice(ctx, models.PricingRequest{
		RoomID: room.ID.String(), CheckIn: "2024-06-01", CheckOut: "2024-06-04",
		GuestComposition: models.GuestComposition{AdultsCount: intPtr(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, quote.TotalPrice, stored.TotalAmount)

	// Guest confirmation and operator notice are queued with the write
	jobs := env.reservations.queuedJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, models.NotificationGuestConfirmation, jobs[0].Kind)
	assert.Equal(t, "amina@example.com", jobs[0].Recipient)
	assert.Contains(t, jobs[0].Subject, res.Reference)
	assert.Equal(t, models.NotificationOperatorNewReservation, jobs[1].Kind)
	assert.Equal(t, "desk@riad.local", jobs[1].Recipient)
	assert.Equal(t, 1, env.kicker.count())
}

func TestCreateReservation_Validation(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	tests := []struct {
		name     string
		mutate   func(r *models.CreateReservationRequest)
		expected string
	}{
		{"missing guest name", func(r *models.CreateReservationRequest) { r.GuestName = " " }, ReasonMissingFields},
		{"missing dates", func(r *models.CreateReservationRequest) { r.CheckIn, r.CheckOut = "", "" }, ReasonMissingFields},
		{"bad email", func(r *models.CreateReservationRequest) { r.GuestEmail = "amina@" }, ReasonInvalidEmail},
		{"bad phone", func(r *models.CreateReservationRequest) { r.GuestPhone = strPtr("call me") }, ReasonInvalidPhone},
		{"reversed dates", func(r *models.CreateReservationRequest) { r.CheckIn, r.CheckOut = "2024-06-05", "2024-06-01" }, ReasonInvalidDates},
		{"negative children", func(r *models.CreateReservationRequest) { r.ChildrenCount = intPtr(-1) }, ReasonInvalidGuests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createReq(room.ID, "2024-06-01", "2024-06-03")
			tt.mutate(&req)
			_, err := env.service.Create(ctx, req, nil, models.ReservationSourceWebsite)
			requireBookingError(t, err, KindValidation, tt.expected)
		})
	}

	t.Run("missing fields are listed", func(t *testing.T) {
		_, err := env.service.Create(ctx, models.CreateReservationRequest{}, nil, models.ReservationSourceWebsite)
		be := requireBookingError(t, err, KindValidation, ReasonMissingFields)
		assert.Contains(t, be.Message, "guest_name")
		assert.Contains(t, be.Message, "check_out")
	})

	assert.Equal(t, 0, env.reservations.active())
}

func TestCreateReservation_PolicyAndConflicts(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	blocked := testRoom("menzah", 100, 2)
	blocked.Status = models.RoomStatusCleaning
	env := newTestEnv(t, &models.BookingSettings{
		MinStay:     intPtr(2),
		ClosedDates: []models.ClosedDate{models.SingleClosedDate(date("2024-12-25"))},
	}, room, blocked)
	ctx := context.Background()

	_, err := env.service.Create(ctx, createReq(room.ID, "2024-06-01", "2024-06-02"), nil, models.ReservationSourceWebsite)
	requireBookingError(t, err, KindPolicy, ReasonMinStay)

	_, err = env.service.Create(ctx, createReq(room.ID, "2024-12-24", "2024-12-27"), nil, models.ReservationSourceWebsite)
	requireBookingError(t, err, KindPolicy, ReasonClosedDates)

	_, err = env.service.Create(ctx, createReq(uuid.New(), "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	requireBookingError(t, err, KindNotFound, ReasonRoomNotFound)

	_, err = env.service.Create(ctx, createReq(blocked.ID, "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	requireBookingError(t, err, KindConflict, ReasonRoomUnavailable)

	crowded := createReq(room.ID, "2024-06-01", "2024-06-03")
	crowded.AdultsCount, crowded.ChildrenCount = intPtr(2), intPtr(1)
	_, err = env.service.Create(ctx, crowded, nil, models.ReservationSourceWebsite)
	requireBookingError(t, err, KindPolicy, ReasonCapacity)

	first, err := env.service.Create(ctx, createReq(room.ID, "2024-06-01", "2024-06-04"), nil, models.ReservationSourceWebsite)
	require.NoError(t, err)

	_, err = env.service.Create(ctx, createReq(room.ID, "2024-06-03", "2024-06-06"), nil, models.ReservationSourceMobile)
	be := requireBookingError(t, err, KindConflict, ReasonBookingConflict)
	require.Len(t, be.Conflicts, 1)
	assert.Equal(t, first.Reference, be.Conflicts[0].Reference)

	// Back-to-back stays are fine
	_, err = env.service.Create(ctx, createReq(room.ID, "2024-06-04", "2024-06-06"), nil, models.ReservationSourceMobile)
	require.NoError(t, err)
}

func TestCreateReservation_ConcurrentRequestsForSameDates(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req := createReq(room.ID, "2024-08-01", "2024-08-05")
			req.GuestEmail = fmt.Sprintf("guest%d@example.com", i)
			_, errs[i] = env.service.Create(ctx, req, nil, models.ReservationSourceWebsite)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		be, ok := AsBookingError(err)
		require.True(t, ok, "unexpected error %v", err)
		assert.Equal(t, KindConflict, be.Kind)
		conflicted++
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)
	assert.Equal(t, 1, env.reservations.active())
}

func TestCreateReservation_OverlapFoundUnderLock(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	// A reservation committed between the pre-check and the locked insert
	env.engine = NewBookingEngine(env.engine.settings, env.rooms, &racingStore{fakeReservationStore: env.reservations, roomID: room.ID}, "MAD", nil, testLogger())
	env.service.engine = env.engine

	_, err := env.service.Create(ctx, createReq(room.ID, "2024-08-01", "2024-08-03"), nil, models.ReservationSourceWebsite)
	be := requireBookingError(t, err, KindConflict, ReasonBookingConflict)
	assert.Len(t, be.Conflicts, 1)
}

// racingStore inserts a competing reservation right before the caller's insert
type racingStore struct {
	*fakeReservationStore
	roomID uuid.UUID
}

func (s *racingStore) InsertExclusive(ctx context.Context, res *models.Reservation, jobs []models.NotificationJob) error {
	s.mu.Lock()
	id := uuid.New()
	s.reservations[id] = models.Reservation{
		ID: id, Reference: "RES-RACE", RoomID: s.roomID, AdultsCount: 2, GuestCount: 2,
		CheckIn: res.CheckIn, CheckOut: res.CheckOut, Status: models.ReservationStatusPending,
	}
	s.mu.Unlock()
	return s.fakeReservationStore.InsertExclusive(ctx, res, jobs)
}

func TestCreateReservation_RegeneratesDuplicateReference(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	env.reservations.duplicateRefs = 2

	var generated []string
	env.service.newReference = func() (string, error) {
		ref := fmt.Sprintf("RES-TEST-%d", len(generated))
		generated = append(generated, ref)
		return ref, nil
	}

	res, err := env.service.Create(context.Background(), createReq(room.ID, "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	require.NoError(t, err)
	assert.Equal(t, "RES-TEST-2", res.Reference)
	assert.Len(t, generated, 3)

	// Rendered emails carry the final reference
	for _, job := range env.reservations.queuedJobs() {
		assert.Contains(t, job.Subject, "RES-TEST-2")
	}
}

func TestCreateReservation_GivesUpAfterReferenceAttempts(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	env.reservations.duplicateRefs = 10

	_, err := env.service.Create(context.Background(), createReq(room.ID, "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	require.Error(t, err)
	_, isBooking := AsBookingError(err)
	assert.False(t, isBooking)
	assert.Equal(t, 0, env.reservations.active())
}

func TestCreateReservation_AdminOverride(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	req := createReq(room.ID, "2024-06-01", "2024-06-04")
	req.AdminOverride = true
	req.TotalAmount = floatPtr(250)
	req.PaidAmount = floatPtr(100)
	req.Status = statusPtr(models.ReservationStatusConfirmed)
	req.AdminNotes = strPtr("Phone booking, repeat guest")

	t.Run("guests cannot override", func(t *testing.T) {
		_, err := env.service.Create(ctx, req, nil, models.ReservationSourceWebsite)
		requireBookingError(t, err, KindForbidden, ReasonAdminRequired)

		_, err = env.service.Create(ctx, req, &Actor{UserID: uuid.New()}, models.ReservationSourceWebsite)
		requireBookingError(t, err, KindForbidden, ReasonAdminRequired)
	})

	t.Run("override requires an amount", func(t *testing.T) {
		noAmount := req
		noAmount.TotalAmount = nil
		_, err := env.service.Create(ctx, noAmount, adminActor, models.ReservationSourceAdmin)
		requireBookingError(t, err, KindValidation, ReasonInvalidAmount)
	})

	t.Run("admin total is used verbatim", func(t *testing.T) {
		res, err := env.service.Create(ctx, req, adminActor, models.ReservationSourceAdmin)
		require.NoError(t, err)
		assert.Equal(t, 250.0, res.TotalAmount)
		assert.Equal(t, 100.0, res.PaidAmount)
		assert.Equal(t, 150.0, res.BalanceDue())
		assert.Equal(t, models.ReservationStatusConfirmed, res.Status)
		assert.Equal(t, models.ReservationSourceAdmin, res.Source)
		require.NotNil(t, res.AdminNotes)
	})

	t.Run("admin-only fields from guests are ignored", func(t *testing.T) {
		guest := createReq(room.ID, "2024-07-01", "2024-07-03")
		guest.Status = statusPtr(models.ReservationStatusConfirmed)
		guest.PaidAmount = floatPtr(999)
		guest.AdminNotes = strPtr("vip")

		res, err := env.service.Create(ctx, guest, nil, models.ReservationSourceWebsite)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusPending, res.Status)
		assert.Equal(t, 0.0, res.PaidAmount)
		assert.Nil(t, res.AdminNotes)
		assert.Equal(t, 200.0, res.TotalAmount)
	})
}

func TestUpdateReservation(t *testing.T) {
	room := testRoom("zellige", 100, 3)
	suite := testRoom("menzah", 200, 3)
	env := newTestEnv(t, nil, room, suite)
	ctx := context.Background()

	res, err := env.service.Create(ctx, createReq(room.ID, "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	require.NoError(t, err)
	other := env.seed(models.Reservation{
		RoomID: room.ID, CheckIn: date("2024-06-10"), CheckOut: date("2024-06-12"), Status: models.ReservationStatusConfirmed,
		GuestName: "Other", GuestEmail: "other@example.com",
	})
	queued := len(env.reservations.queuedJobs())

	t.Run("confirming queues a guest update", func(t *testing.T) {
		updated, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{Status: statusPtr(models.ReservationStatusConfirmed)})
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusConfirmed, updated.Status)

		jobs := env.reservations.queuedJobs()
		require.Len(t, jobs, queued+1)
		assert.Equal(t, models.NotificationGuestUpdate, jobs[queued].Kind)
		queued++
	})

	t.Run("editing notes alone sends nothing", func(t *testing.T) {
		_, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{AdminNotes: strPtr("Prefers ground floor")})
		require.NoError(t, err)
		assert.Len(t, env.reservations.queuedJobs(), queued)
	})

	t.Run("extending over another stay conflicts", func(t *testing.T) {
		_, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{CheckOut: strPtr("2024-06-11")})
		be := requireBookingError(t, err, KindConflict, ReasonBookingConflict)
		require.Len(t, be.Conflicts, 1)
		assert.Equal(t, other.Reference, be.Conflicts[0].Reference)
	})

	t.Run("changing dates does not conflict with itself and reprices", func(t *testing.T) {
		updated, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{CheckOut: strPtr("2024-06-05")})
		require.NoError(t, err)
		assert.Equal(t, 400.0, updated.TotalAmount)
		assert.Len(t, env.reservations.queuedJobs(), queued+1)
		queued++
	})

	t.Run("moving rooms reprices at the new rate", func(t *testing.T) {
		updated, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{RoomID: strPtr(suite.ID.String())})
		require.NoError(t, err)
		assert.Equal(t, suite.ID, updated.RoomID)
		assert.Equal(t, 800.0, updated.TotalAmount)
		queued++
	})

	t.Run("moving into a room under maintenance is refused", func(t *testing.T) {
		require.NoError(t, env.rooms.UpdateStatus(ctx, room.ID, models.RoomStatusMaintenance))
		defer env.rooms.UpdateStatus(ctx, room.ID, models.RoomStatusAvailable)

		_, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{RoomID: strPtr(room.ID.String())})
		requireBookingError(t, err, KindConflict, ReasonRoomUnavailable)
	})

	t.Run("explicit total wins over repricing", func(t *testing.T) {
		updated, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{
			AdultsCount: intPtr(3), TotalAmount: floatPtr(700),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.GuestCount)
		assert.Equal(t, 700.0, updated.TotalAmount)
		queued++
	})

	t.Run("cancelling queues a cancellation", func(t *testing.T) {
		updated, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{Status: statusPtr(models.ReservationStatusCancelled)})
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusCancelled, updated.Status)

		jobs := env.reservations.queuedJobs()
		require.Len(t, jobs, queued+1)
		assert.Equal(t, models.NotificationGuestCancellation, jobs[queued].Kind)
		assert.Contains(t, jobs[queued].Subject, "cancelled")
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		_, err := env.service.Update(ctx, res.ID, models.UpdateReservationRequest{Status: statusPtr(models.ReservationStatusPending)})
		requireBookingError(t, err, KindValidation, ReasonInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := env.service.Update(ctx, other.ID, models.UpdateReservationRequest{Status: statusPtr("archived")})
		requireBookingError(t, err, KindValidation, ReasonInvalidStatus)
	})

	t.Run("missing reservation", func(t *testing.T) {
		_, err := env.service.Update(ctx, uuid.New(), models.UpdateReservationRequest{GuestName: strPtr("X")})
		requireBookingError(t, err, KindNotFound, ReasonReservationNotFound)
	})
}

func TestGetByReference(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	res, err := env.service.Create(ctx, createReq(room.ID, "2024-06-01", "2024-06-03"), nil, models.ReservationSourceWebsite)
	require.NoError(t, err)

	found, err := env.service.GetByReference(ctx, res.Reference, "AMINA@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)

	_, err = env.service.GetByReference(ctx, res.Reference, "someone@example.com")
	requireBookingError(t, err, KindNotFound, ReasonReservationNotFound)

	_, err = env.service.GetByReference(ctx, res.Reference, "")
	requireBookingError(t, err, KindValidation, ReasonMissingFields)
}

func TestDeleteAndCompletePastStays(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	env := newTestEnv(t, nil, room)
	ctx := context.Background()

	past := env.seed(models.Reservation{RoomID: room.ID, CheckIn: date("2020-01-01"), CheckOut: date("2020-01-03"), Status: models.ReservationStatusConfirmed})
	pending := env.seed(models.Reservation{RoomID: room.ID, CheckIn: date("2020-02-01"), CheckOut: date("2020-02-03"), Status: models.ReservationStatusPending})

	completed, err := env.service.CompletePastStays(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), completed)

	got, err := env.service.Get(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, got.Status)

	require.NoError(t, env.service.Delete(ctx, pending.ID))
	err = env.service.Delete(ctx, pending.ID)
	requireBookingError(t, err, KindNotFound, ReasonReservationNotFound)

	_, err = env.service.Get(ctx, pending.ID)
	assert.True(t, errors.As(err, new(*BookingError)))
}
