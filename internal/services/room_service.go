package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// RoomService exposes the room catalogue and the admin status switch
type RoomService struct {
	rooms  RoomStore
	logger *logrus.Logger
}

// NewRoomService creates a new room service
func NewRoomService(rooms RoomStore, logger *logrus.Logger) *RoomService {
	return &RoomService{rooms: rooms, logger: logger}
}

// List returns every room ordered by name
func (s *RoomService) List(ctx context.Context) ([]models.Room, error) {
	return s.rooms.List(ctx)
}

// Get returns one room
func (s *RoomService) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, notFoundError(ReasonRoomNotFound, "Room not found")
	}
	return room, nil
}

// UpdateStatus changes a room's operational status. Existing reservations are
// not touched; only new bookings are refused while the room is not available.
func (s *RoomService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) (*models.Room, error) {
	if !status.IsValid() {
		return nil, validationError(ReasonInvalidStatus, "unknown room status %q", status)
	}
	err := s.rooms.UpdateStatus(ctx, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundError(ReasonRoomNotFound, "Room not found")
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"room_id": id,
		"status":  status,
	}).Info("Room status updated")
	return s.Get(ctx, id)
}
