package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/riadtaziri/booking-backend/internal/models"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by the seed tool. Field names follow
// the JSON API so a settings payload can be pasted in unchanged.
type seedFile struct {
	BookingSettings *models.BookingSettings
	Rooms           []models.Room
	Admin           *seedAdmin
}

type seedAdmin struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PasswordEnv string `json:"password_env"`
}

// Password reads the admin password from the configured environment variable
func (a seedAdmin) Password() (string, error) {
	env := a.PasswordEnv
	if env == "" {
		env = "SEED_ADMIN_PASSWORD"
	}
	password := os.Getenv(env)
	if password == "" {
		return "", fmt.Errorf("%s is not set", env)
	}
	return password, nil
}

// parseSeed decodes YAML into generic values, then round-trips them through
// encoding/json so the models' JSON decoders (dates, closed ranges, seasonal
// pricing variants) apply unchanged.
func parseSeed(data []byte) (*seedFile, error) {
	var raw struct {
		BookingSettings interface{}   `yaml:"booking_settings"`
		Rooms           []interface{} `yaml:"rooms"`
		Admin           interface{}   `yaml:"admin"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid seed YAML: %w", err)
	}

	out := &seedFile{}
	if raw.BookingSettings != nil {
		var settings models.BookingSettings
		if err := viaJSON(raw.BookingSettings, &settings); err != nil {
			return nil, fmt.Errorf("booking_settings: %w", err)
		}
		if err := settings.Validate(); err != nil {
			return nil, fmt.Errorf("booking_settings: %w", err)
		}
		out.BookingSettings = &settings
	}

	seen := make(map[string]bool, len(raw.Rooms))
	for i, r := range raw.Rooms {
		var room models.Room
		if err := viaJSON(r, &room); err != nil {
			return nil, fmt.Errorf("rooms[%d]: %w", i, err)
		}
		if err := checkRoom(&room); err != nil {
			return nil, fmt.Errorf("rooms[%d]: %w", i, err)
		}
		if seen[room.Slug] {
			return nil, fmt.Errorf("rooms[%d]: duplicate slug %q", i, room.Slug)
		}
		seen[room.Slug] = true
		out.Rooms = append(out.Rooms, room)
	}

	if raw.Admin != nil {
		var admin seedAdmin
		if err := viaJSON(raw.Admin, &admin); err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
		if strings.TrimSpace(admin.Email) == "" {
			return nil, fmt.Errorf("admin: email is required")
		}
		out.Admin = &admin
	}

	return out, nil
}

func checkRoom(room *models.Room) error {
	room.Name = strings.TrimSpace(room.Name)
	room.Slug = strings.TrimSpace(room.Slug)
	if room.Name == "" || room.Slug == "" {
		return fmt.Errorf("name and slug are required")
	}
	if room.BasePrice < 0 {
		return fmt.Errorf("base_price must not be negative")
	}
	if room.MaxGuests < 1 {
		return fmt.Errorf("max_guests must be at least 1")
	}
	if room.Status == "" {
		room.Status = models.RoomStatusAvailable
	}
	if !room.Status.IsValid() {
		return fmt.Errorf("unknown status %q", room.Status)
	}
	return nil
}

func viaJSON(in interface{}, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
