package main

import (
	"os"
	"testing"

	"github.com/riadtaziri/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeed_Example(t *testing.T) {
	data, err := os.ReadFile("seed.example.yaml")
	require.NoError(t, err)

	seed, err := parseSeed(data)
	require.NoError(t, err)

	require.NotNil(t, seed.BookingSettings)
	require.NotNil(t, seed.BookingSettings.MinStay)
	assert.Equal(t, 1, *seed.BookingSettings.MinStay)
	require.Len(t, seed.BookingSettings.ClosedDates, 2)
	assert.True(t, seed.BookingSettings.ClosedDates[1].Contains(models.MustParseDate("2026-08-10")))

	require.Len(t, seed.Rooms, 2)
	zellige := seed.Rooms[0]
	assert.Equal(t, models.RoomStatusAvailable, zellige.Status)
	assert.Equal(t, models.SeasonalPricingRangeRules, zellige.SeasonalPrices.Kind())
	assert.Equal(t, float64(1200), zellige.NightlyPrice(models.MustParseDate("2026-12-25")))
	assert.Equal(t, float64(900), zellige.NightlyPrice(models.MustParseDate("2026-11-25")))

	majorelle := seed.Rooms[1]
	assert.Equal(t, models.SeasonalPricingDateMap, majorelle.SeasonalPrices.Kind())
	assert.Equal(t, float64(2500), majorelle.NightlyPrice(models.MustParseDate("2026-12-31")))

	require.NotNil(t, seed.Admin)
	assert.Equal(t, "owner@riad.example", seed.Admin.Email)
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "rooms: [\n"},
		{"min above max", "booking_settings:\n  min_stay: 5\n  max_stay: 2\n"},
		{"room without slug", "rooms:\n  - name: Zellige\n    max_guests: 2\n"},
		{"room without guests", "rooms:\n  - name: Zellige\n    slug: zellige\n"},
		{"unknown status", "rooms:\n  - name: Zellige\n    slug: zellige\n    max_guests: 2\n    status: flooded\n"},
		{"duplicate slug", "rooms:\n  - {name: A, slug: a, max_guests: 1}\n  - {name: B, slug: a, max_guests: 1}\n"},
		{"admin without email", "admin:\n  full_name: Owner\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeedAdminPassword(t *testing.T) {
	t.Setenv("RIAD_TEST_ADMIN_PASSWORD", "")
	admin := seedAdmin{Email: "owner@riad.example", PasswordEnv: "RIAD_TEST_ADMIN_PASSWORD"}
	_, err := admin.Password()
	assert.Error(t, err)

	t.Setenv("RIAD_TEST_ADMIN_PASSWORD", "long-enough-pass")
	password, err := admin.Password()
	require.NoError(t, err)
	assert.Equal(t, "long-enough-pass", password)
}
