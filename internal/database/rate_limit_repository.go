package database

import (
	"context"
	"fmt"
	"time"
)

// RateLimitRepository stores request hits in the rate_limits table. It backs
// the limiter when no Redis instance is configured.
type RateLimitRepository struct {
	db DB
}

// NewRateLimitRepository creates a new RateLimitRepository
func NewRateLimitRepository(db DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// CountSince returns the number of hits recorded for the identifier in scope
// after windowStart, and the timestamp of the oldest one.
func (r *RateLimitRepository) CountSince(ctx context.Context, scope, identifier string, windowStart time.Time) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(created_at), NOW())
		FROM rate_limits
		WHERE identifier = $1
		  AND scope = $2
		  AND created_at > $3
	`

	var count int
	var oldest time.Time
	if err := r.db.QueryRowxContext(ctx, query, identifier, scope, windowStart).Scan(&count, &oldest); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to count rate limit hits: %w", err)
	}
	return count, oldest, nil
}

// Record inserts one hit
func (r *RateLimitRepository) Record(ctx context.Context, scope, identifier string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limits (identifier, scope, created_at) VALUES ($1, $2, NOW())`,
		identifier, scope,
	)
	if err != nil {
		return fmt.Errorf("failed to record rate limit hit: %w", err)
	}
	return nil
}

// DeleteBefore removes hits older than the cutoff
func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
