package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_GetByKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSettingsRepository(db)
		now := time.Now()

		mock.ExpectQuery(`FROM settings`).
			WithArgs(models.BookingSettingsKey).
			WillReturnRows(sqlmock.NewRows([]string{"key", "value", "description", "created_at", "updated_at"}).
				AddRow(models.BookingSettingsKey, []byte(`{"min_stay":2}`), nil, now, now))

		setting, err := repo.GetByKey(ctx, models.BookingSettingsKey)
		require.NoError(t, err)
		require.NotNil(t, setting)
		assert.JSONEq(t, `{"min_stay":2}`, string(setting.Value))
		assert.Nil(t, setting.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Absent", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSettingsRepository(db)

		mock.ExpectQuery(`FROM settings`).
			WithArgs(models.BookingSettingsKey).
			WillReturnError(sql.ErrNoRows)

		setting, err := repo.GetByKey(ctx, models.BookingSettingsKey)
		assert.NoError(t, err)
		assert.Nil(t, setting)
	})

	t.Run("Database Error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewSettingsRepository(db)

		mock.ExpectQuery(`FROM settings`).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByKey(ctx, models.BookingSettingsKey)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get setting")
	})
}

func TestSettingsRepository_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`INSERT INTO settings`).
		WithArgs(models.BookingSettingsKey, `{"max_stay":14}`, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), models.BookingSettingsKey, []byte(`{"max_stay":14}`), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapReservationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"pq exclusion", &pq.Error{Code: "23P01"}, ErrBookingOverlap},
		{"pgx exclusion", &pgconn.PgError{Code: "23P01"}, ErrBookingOverlap},
		{"pq unique on reference", &pq.Error{Code: "23505", Constraint: "reservations_reference_key"}, ErrDuplicateReference},
		{"pgx unique without constraint name", &pgconn.PgError{Code: "23505"}, ErrDuplicateReference},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, mapReservationError(tc.err), tc.expected)
		})
	}

	other := &pq.Error{Code: "23503", Constraint: "reservations_room_id_fkey"}
	assert.Equal(t, error(other), mapReservationError(other))

	otherUnique := &pq.Error{Code: "23505", Constraint: "some_other_key"}
	assert.Equal(t, error(otherUnique), mapReservationError(otherUnique))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapReservationError(plain))
}
