package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomService(t *testing.T) {
	room := testRoom("zellige", 100, 2)
	svc := NewRoomService(newFakeRoomStore(room), testLogger())
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, room.ID, models.RoomStatusCleaning)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusCleaning, updated.Status)

	_, err = svc.UpdateStatus(ctx, room.ID, "flooded")
	requireBookingError(t, err, KindValidation, ReasonInvalidStatus)

	_, err = svc.Get(ctx, uuid.New())
	requireBookingError(t, err, KindNotFound, ReasonRoomNotFound)

	rooms, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}
