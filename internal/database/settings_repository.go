package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riadtaziri/booking-backend/internal/models"
)

// SettingsRepository handles database operations for the settings table
type SettingsRepository struct {
	db DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetByKey retrieves a setting by its key. Returns nil, nil when the key is absent.
func (r *SettingsRepository) GetByKey(ctx context.Context, key string) (*models.Setting, error) {
	query := `
		SELECT key, value, description, created_at, updated_at
		FROM settings
		WHERE key = $1
	`

	var setting models.Setting
	var value []byte
	var description sql.NullString

	err := r.db.QueryRowxContext(ctx, query, key).Scan(
		&setting.Key,
		&value,
		&description,
		&setting.CreatedAt,
		&setting.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	setting.Value = value
	if description.Valid {
		setting.Description = &description.String
	}

	return &setting, nil
}

// Upsert stores the value under key, creating the row if needed
func (r *SettingsRepository) Upsert(ctx context.Context, key string, value []byte, description *string) error {
	query := `
		INSERT INTO settings (key, value, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = COALESCE(EXCLUDED.description, settings.description),
		    updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, key, string(value), description); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
