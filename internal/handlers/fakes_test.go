package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/database"
	"github.com/riadtaziri/booking-backend/internal/middleware"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/riadtaziri/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret-key-at-least-32-chars"

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type memRooms struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.Room
}

func (s *memRooms) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	copied := *room
	return &copied, nil
}

func (s *memRooms) List(ctx context.Context) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, *room)
	}
	return out, nil
}

func (s *memRooms) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return sql.ErrNoRows
	}
	room.Status = status
	return nil
}

type memReservations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Reservation
}

func (s *memReservations) GetByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	copied := *res
	return &copied, nil
}

func (s *memReservations) GetByReference(ctx context.Context, reference string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.rows {
		if res.Reference == reference {
			copied := *res
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memReservations) conflicts(roomID uuid.UUID, checkIn, checkOut models.Date, excludeID *uuid.UUID) []models.Reservation {
	var out []models.Reservation
	for _, res := range s.rows {
		if res.RoomID != roomID || !res.Status.IsActive() {
			continue
		}
		if excludeID != nil && res.ID == *excludeID {
			continue
		}
		if res.Overlaps(checkIn, checkOut) {
			out = append(out, *res)
		}
	}
	return out
}

func (s *memReservations) FindConflicts(ctx context.Context, roomID uuid.UUID, checkIn, checkOut models.Date, excludeID *uuid.UUID) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conflicts(roomID, checkIn, checkOut, excludeID), nil
}

func (s *memReservations) InsertExclusive(ctx context.Context, res *models.Reservation, jobs []models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.Status.IsActive() && len(s.conflicts(res.RoomID, res.CheckIn, res.CheckOut, nil)) > 0 {
		return database.ErrBookingOverlap
	}
	res.ID = uuid.New()
	res.CreatedAt = time.Now()
	res.UpdatedAt = res.CreatedAt
	copied := *res
	s.rows[res.ID] = &copied
	return nil
}

func (s *memReservations) UpdateExclusive(ctx context.Context, res *models.Reservation, previousRoomID uuid.UUID, jobs []models.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[res.ID]; !ok {
		return sql.ErrNoRows
	}
	if res.Status.IsActive() && len(s.conflicts(res.RoomID, res.CheckIn, res.CheckOut, &res.ID)) > 0 {
		return database.ErrBookingOverlap
	}
	copied := *res
	s.rows[res.ID] = &copied
	return nil
}

func (s *memReservations) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, res := range s.rows {
		if filter.Status != nil && res.Status != *filter.Status {
			continue
		}
		if filter.RoomID != nil && res.RoomID != *filter.RoomID {
			continue
		}
		out = append(out, *res)
	}
	return out, len(out), nil
}

func (s *memReservations) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	return nil
}

func (s *memReservations) CompletePastStays(ctx context.Context, today models.Date) (int64, error) {
	return 0, nil
}

type memSettings struct {
	mu    sync.Mutex
	value []byte
}

func (s *memSettings) GetByKey(ctx context.Context, key string) (*models.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil, nil
	}
	return &models.Setting{Key: key, Value: append([]byte(nil), s.value...)}, nil
}

func (s *memSettings) Upsert(ctx context.Context, key string, value []byte, description *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), value...)
	return nil
}

// testEnv wires real services over in-memory stores behind a gin router
// laid out like the server's.
type testEnv struct {
	router       *gin.Engine
	jwt          *jwt.Service
	room         *models.Room
	rooms        *memRooms
	reservations *memReservations
	settings     *memSettings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := quietLogger()

	room := &models.Room{
		ID:        uuid.New(),
		Name:      "Chambre Zellige",
		Slug:      "zellige",
		BasePrice: 120,
		MaxGuests: 3,
		Status:    models.RoomStatusAvailable,
	}
	env := &testEnv{
		jwt:          jwt.NewService(testSecret, time.Hour),
		room:         room,
		rooms:        &memRooms{rooms: map[uuid.UUID]*models.Room{room.ID: room}},
		reservations: &memReservations{rows: map[uuid.UUID]*models.Reservation{}},
		settings:     &memSettings{},
	}

	resolver := services.NewSettingsResolver(env.settings, logger)
	engine := services.NewBookingEngine(resolver, env.rooms, env.reservations, "EUR", nil, logger)
	renderer := services.NewNotificationRenderer("ops@riad.test", "https://riad.test", "EUR")
	reservationService := services.NewReservationService(engine, renderer, 3, nil, logger)

	bookingHandler := NewBookingHandler(engine, reservationService, logger)
	roomHandler := NewRoomHandler(services.NewRoomService(env.rooms, logger), logger)
	adminHandler := NewAdminHandler(reservationService, resolver, services.NewExportService(env.rooms, env.reservations), logger)

	env.router = newTestRouter(env.jwt, bookingHandler, roomHandler, adminHandler)
	return env
}

func newTestRouter(jwtService *jwt.Service, booking *BookingHandler, rooms *RoomHandler, admin *AdminHandler) *gin.Engine {
	router := gin.New()
	v1 := router.Group("/api/v1")

	reservations := v1.Group("/reservations")
	reservations.Use(middleware.OptionalAuth(jwtService))
	{
		reservations.POST("", booking.CreateReservation)
		reservations.POST("/availability", booking.CheckAvailability)
		reservations.POST("/pricing", booking.QuotePrice)
		reservations.GET("/reference/:reference", booking.LookupReservation)
		reservations.PUT("/:id", middleware.RequireRole(jwt.RoleAdmin), admin.UpdateReservation)
	}

	v1.GET("/rooms", rooms.ListRooms)
	v1.GET("/rooms/:id", rooms.GetRoom)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(jwt.RoleAdmin))
	{
		adminGroup.PUT("/rooms/:id/status", rooms.UpdateRoomStatus)
		adminGroup.GET("/reservations", admin.ListReservations)
		adminGroup.GET("/reservations/export", admin.ExportReservations)
		adminGroup.GET("/reservations/:id", admin.GetReservation)
		adminGroup.PUT("/reservations/:id", admin.UpdateReservation)
		adminGroup.DELETE("/reservations/:id", admin.DeleteReservation)
		adminGroup.GET("/settings/booking", admin.GetBookingSettings)
		adminGroup.PUT("/settings/booking", admin.UpdateBookingSettings)
	}
	return router
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken(uuid.New(), "owner@riad.test", []string{jwt.RoleAdmin})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, body, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
