package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/database"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/pkg/mailer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errNoRows = sql.ErrNoRows

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func date(s string) models.Date { return models.MustParseDate(s) }

func statusPtr(s models.ReservationStatus) *models.ReservationStatus {
	return &s
}

// ============================================================================
// SETTINGS
// ============================================================================

type fakeSettingsStore struct {
	mu    sync.Mutex
	value []byte
	err   error
	reads int
}

func newFakeSettingsStore(t *testing.T, settings *models.BookingSettings) *fakeSettingsStore {
	s := &fakeSettingsStore{}
	if settings != nil {
		data, err := json.Marshal(settings)
		require.NoError(t, err)
		s.value = data
	}
	return s
}

func (s *fakeSettingsStore) GetByKey(ctx context.Context, key string) (*models.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	if s.value == nil {
		return nil, nil
	}
	return &models.Setting{Key: key, Value: append([]byte(nil), s.value...)}, nil
}

func (s *fakeSettingsStore) Upsert(ctx context.Context, key string, value []byte, description *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.value = append([]byte(nil), value...)
	return nil
}

// ============================================================================
// ROOMS
// ============================================================================

type fakeRoomStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]models.Room
}

func newFakeRoomStore(rooms ...models.Room) *fakeRoomStore {
	s := &fakeRoomStore{rooms: map[uuid.UUID]models.Room{}}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	return s
}

func (s *fakeRoomStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (s *fakeRoomStore) List(ctx context.Context) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeRoomStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return errNoRows
	}
	room.Status = status
	s.rooms[id] = room
	return nil
}

// ============================================================================
// RESERVATIONS
// ============================================================================

// fakeReservationStore serializes writers with one mutex, standing in for the
// per-room advisory lock of the Postgres store.
type fakeReservationStore struct {
	mu              sync.Mutex
	reservations    map[uuid.UUID]models.Reservation
	jobs            []models.NotificationJob
	duplicateRefs   int
	skipWriteChecks bool
}

func newFakeReservationStore(existing ...models.Reservation) *fakeReservationStore {
	s := &fakeReservationStore{reservations: map[uuid.UUID]models.Reservation{}}
	for _, r := range existing {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.reservations[r.ID] = r
	}
	return s
}

func (s *fakeReservationStore) conflicts(roomID uuid.UUID, in, out models.Date, exclude *uuid.UUID) []models.Reservation {
	var found []models.Reservation
	for _, r := range s.reservations {
		if r.RoomID != roomID || !r.Status.IsActive() {
			continue
		}
		if exclude != nil && r.ID == *exclude {
			continue
		}
		if r.Overlaps(in, out) {
			found = append(found, r)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CheckIn.Before(found[j].CheckIn) })
	return found
}

func (s *fakeReservationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *fakeReservationStore) GetByReference(ctx context.Context, reference string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.Reference == reference {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *fakeReservationStore) FindConflicts(ctx context.Context, roomID uuid.UUID, checkIn, checkOut models.Date, excludeID *uuid.UUID) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicts(roomID, checkIn, checkOut, excludeID), nil
}

func (s *fakeReservationStore) InsertExclusive(ctx context.Context, res *models.Reservation, jobs []models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.duplicateRefs > 0 {
		s.duplicateRefs--
		return database.ErrDuplicateReference
	}
	if !s.skipWriteChecks && res.Status.IsActive() && len(s.conflicts(res.RoomID, res.CheckIn, res.CheckOut, nil)) > 0 {
		return database.ErrBookingOverlap
	}

	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	now := time.Now()
	res.CreatedAt, res.UpdatedAt = now, now
	s.reservations[res.ID] = *res
	s.appendJobs(res.ID, jobs)
	return nil
}

func (s *fakeReservationStore) UpdateExclusive(ctx context.Context, res *models.Reservation, previousRoomID uuid.UUID, jobs []models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[res.ID]; !ok {
		return errNoRows
	}
	if !s.skipWriteChecks && res.Status.IsActive() && len(s.conflicts(res.RoomID, res.CheckIn, res.CheckOut, &res.ID)) > 0 {
		return database.ErrBookingOverlap
	}
	res.UpdatedAt = time.Now()
	s.reservations[res.ID] = *res
	s.appendJobs(res.ID, jobs)
	return nil
}

func (s *fakeReservationStore) appendJobs(reservationID uuid.UUID, jobs []models.NotificationJob) {
	for _, job := range jobs {
		rid := reservationID
		job.ID = uuid.New()
		job.ReservationID = &rid
		s.jobs = append(s.jobs, job)
	}
}

func (s *fakeReservationStore) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Reservation
	for _, r := range s.reservations {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.RoomID != nil && r.RoomID != *filter.RoomID {
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Reference < all[j].Reference })

	total := len(all)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return all[start:end], total, nil
}

func (s *fakeReservationStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[id]; !ok {
		return errNoRows
	}
	delete(s.reservations, id)
	return nil
}

func (s *fakeReservationStore) CompletePastStays(ctx context.Context, today models.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.reservations {
		if r.Status == models.ReservationStatusConfirmed && r.CheckOut.Before(today) {
			r.Status = models.ReservationStatusCompleted
			s.reservations[id] = r
			n++
		}
	}
	return n, nil
}

func (s *fakeReservationStore) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status.IsActive() {
			n++
		}
	}
	return n
}

func (s *fakeReservationStore) queuedJobs() []models.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NotificationJob(nil), s.jobs...)
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================

type fakeNotificationStore struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*models.NotificationJob
	order  []uuid.UUID
	purged time.Time
}

func newFakeNotificationStore(jobs ...models.NotificationJob) *fakeNotificationStore {
	s := &fakeNotificationStore{jobs: map[uuid.UUID]*models.NotificationJob{}}
	for i := range jobs {
		job := jobs[i]
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		if job.Status == "" {
			job.Status = models.NotificationJobPending
		}
		s.jobs[job.ID] = &job
		s.order = append(s.order, job.ID)
	}
	return s
}

func (s *fakeNotificationStore) ClaimDue(ctx context.Context, now time.Time, limit int, staleAfter time.Duration) ([]models.NotificationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []models.NotificationJob
	for _, id := range s.order {
		job := s.jobs[id]
		if job.Status != models.NotificationJobPending || job.NextAttemptAt.After(now) {
			continue
		}
		if len(claimed) == limit {
			break
		}
		job.Status = models.NotificationJobSending
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

func (s *fakeNotificationStore) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.NotificationJobSent
	job.Attempts = attempts
	return nil
}

func (s *fakeNotificationStore) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.NotificationJobPending
	job.Attempts = attempts
	job.NextAttemptAt = next
	job.LastError = &lastError
	return nil
}

func (s *fakeNotificationStore) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	job.Status = models.NotificationJobDead
	job.Attempts = attempts
	job.LastError = &lastError
	return nil
}

func (s *fakeNotificationStore) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.Status == models.NotificationJobPending || job.Status == models.NotificationJobSending {
			n++
		}
	}
	return n, nil
}

func (s *fakeNotificationStore) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purged = before
	return 0, nil
}

func (s *fakeNotificationStore) get(id uuid.UUID) models.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) GetName() string { return "fake" }

type countingKicker struct {
	mu    sync.Mutex
	kicks int
}

func (k *countingKicker) Kick() {
	k.mu.Lock()
	k.kicks++
	k.mu.Unlock()
}

func (k *countingKicker) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.kicks
}
