package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/internal/models"
)

const roomColumns = `id, name, slug, description, base_price, max_guests, status, seasonal_prices, created_at, updated_at`

// RoomRepository handles database operations for rooms
type RoomRepository struct {
	db DB
}

// NewRoomRepository creates a new RoomRepository
func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// GetByID retrieves a room by ID. Returns nil, nil when it does not exist.
func (r *RoomRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// List returns all rooms ordered by name
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	rooms := []models.Room{}
	if err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` FROM rooms ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// UpdateStatus sets the operational status of a room
func (r *RoomRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Upsert inserts a room or updates it by slug. Used by the seed tool.
func (r *RoomRepository) Upsert(ctx context.Context, room *models.Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}

	query := `
		INSERT INTO rooms (id, name, slug, description, base_price, max_guests, status, seasonal_prices, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    base_price = EXCLUDED.base_price,
		    max_guests = EXCLUDED.max_guests,
		    status = EXCLUDED.status,
		    seasonal_prices = EXCLUDED.seasonal_prices,
		    updated_at = NOW()
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		room.ID, room.Name, room.Slug, room.Description, room.BasePrice,
		room.MaxGuests, room.Status, room.SeasonalPrices,
	).Scan(&room.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert room %s: %w", room.Slug, err)
	}
	return nil
}
