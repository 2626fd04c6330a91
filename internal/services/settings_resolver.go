package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const settingsCacheKey = "booking:settings:v1"

// SettingsStore is the persistence behind the settings resolver
type SettingsStore interface {
	GetByKey(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key string, value []byte, description *string) error
}

// SettingsResolver loads the global booking policy. A missing or malformed
// settings row resolves to empty settings so that booking stays permissive.
type SettingsResolver struct {
	store    SettingsStore
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// NewSettingsResolver creates a resolver reading straight from the store
func NewSettingsResolver(store SettingsStore, logger *logrus.Logger) *SettingsResolver {
	return &SettingsResolver{
		store:  store,
		logger: logger,
	}
}

// UseRedisCache enables read-through caching of the settings row
func (r *SettingsResolver) UseRedisCache(client *redis.Client, ttl time.Duration) {
	r.redis = client
	r.cacheTTL = ttl
}

// Resolve returns the current booking settings. Store errors are returned;
// an absent or undecodable row is not an error.
func (r *SettingsResolver) Resolve(ctx context.Context) (models.BookingSettings, error) {
	var settings models.BookingSettings
	if r.readCache(ctx, &settings) {
		return settings, nil
	}

	row, err := r.store.GetByKey(ctx, models.BookingSettingsKey)
	if err != nil {
		return models.BookingSettings{}, fmt.Errorf("failed to load booking settings: %w", err)
	}
	if row == nil || len(row.Value) == 0 {
		r.logger.Warn("Booking settings not configured, using permissive defaults")
		return models.BookingSettings{}, nil
	}

	if err := json.Unmarshal(row.Value, &settings); err != nil {
		r.logger.WithError(err).Warn("Booking settings are malformed, using permissive defaults")
		return models.BookingSettings{}, nil
	}

	r.writeCache(ctx, settings)
	return settings, nil
}

// Save validates and stores new settings, then drops the cached copy
func (r *SettingsResolver) Save(ctx context.Context, settings models.BookingSettings) error {
	if err := settings.Validate(); err != nil {
		return validationError(ReasonInvalidSettings, "%s", err.Error())
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode booking settings: %w", err)
	}

	description := "Global booking policy"
	if err := r.store.Upsert(ctx, models.BookingSettingsKey, data, &description); err != nil {
		return fmt.Errorf("failed to save booking settings: %w", err)
	}

	if r.redis != nil {
		if err := r.redis.Del(ctx, settingsCacheKey).Err(); err != nil {
			r.logger.WithError(err).Warn("Failed to invalidate booking settings cache")
		}
	}

	r.logger.Info("Booking settings updated")
	return nil
}

func (r *SettingsResolver) readCache(ctx context.Context, out *models.BookingSettings) bool {
	if r.redis == nil || r.cacheTTL <= 0 {
		return false
	}
	val, err := r.redis.Get(ctx, settingsCacheKey).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (r *SettingsResolver) writeCache(ctx context.Context, settings models.BookingSettings) {
	if r.redis == nil || r.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, settingsCacheKey, data, r.cacheTTL).Err(); err != nil {
		r.logger.WithError(err).Warn("Failed to cache booking settings")
	}
}
