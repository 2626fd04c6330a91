package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus represents the operational status of a room
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusMaintenance RoomStatus = "maintenance"
	RoomStatusCleaning    RoomStatus = "cleaning"
	RoomStatusOccupied    RoomStatus = "occupied"
)

// IsValid checks if the room status is one of the known values
func (s RoomStatus) IsValid() bool {
	switch s {
	case RoomStatusAvailable, RoomStatusMaintenance, RoomStatusCleaning, RoomStatusOccupied:
		return true
	}
	return false
}

// Room represents a bookable room
type Room struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Slug           string          `json:"slug" db:"slug"`
	Description    *string         `json:"description,omitempty" db:"description"`
	BasePrice      float64         `json:"base_price" db:"base_price"`
	MaxGuests      int             `json:"max_guests" db:"max_guests"`
	Status         RoomStatus      `json:"status" db:"status"`
	SeasonalPrices SeasonalPricing `json:"seasonal_prices" db:"seasonal_prices"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// IsBookable returns true only for rooms in the available status
func (r *Room) IsBookable() bool {
	return r.Status == RoomStatusAvailable
}

// NightlyPrice returns the seasonal override for the night, else the base price
func (r *Room) NightlyPrice(d Date) float64 {
	if p, ok := r.SeasonalPrices.PriceFor(d); ok {
		return p
	}
	return r.BasePrice
}

// UpdateRoomStatusRequest is the admin payload to change a room's status
type UpdateRoomStatusRequest struct {
	Status RoomStatus `json:"status" binding:"required"`
}
