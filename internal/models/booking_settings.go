package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BookingSettingsKey is the settings row holding the global booking policy
const BookingSettingsKey = "booking_settings"

// DefaultIncludedAdults is the number of adults covered by the base price when unset
const DefaultIncludedAdults = 2

// Setting is one row of the key/value settings store
type Setting struct {
	Key         string          `json:"key" db:"key"`
	Value       json.RawMessage `json:"value" db:"value"`
	Description *string         `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ClosedDate is a single closed day or an inclusive {start, end} range
type ClosedDate struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// SingleClosedDate builds a one-day closure
func SingleClosedDate(d Date) ClosedDate {
	return ClosedDate{Start: d, End: d}
}

// Contains reports whether the night d falls inside the closure
func (c ClosedDate) Contains(d Date) bool {
	return !d.Before(c.Start) && !d.After(c.End)
}

// MarshalJSON renders single days as a bare date string
func (c ClosedDate) MarshalJSON() ([]byte, error) {
	if c.Start.Equal(c.End) {
		return json.Marshal(c.Start.String())
	}
	type rangeForm struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}
	return json.Marshal(rangeForm{Start: c.Start, End: c.End})
}

// UnmarshalJSON accepts "YYYY-MM-DD" or {"start": ..., "end": ...}
func (c *ClosedDate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var d Date
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return err
		}
		*c = SingleClosedDate(d)
		return nil
	}

	var raw struct {
		Start *Date `json:"start"`
		End   *Date `json:"end"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return fmt.Errorf("closed date must be a date or {start, end}: %w", err)
	}
	if raw.Start == nil {
		return errors.New("closed date range requires start")
	}
	end := raw.Start
	if raw.End != nil {
		end = raw.End
	}
	if end.Before(*raw.Start) {
		return fmt.Errorf("closed date range ends (%s) before it starts (%s)", end, raw.Start)
	}
	*c = ClosedDate{Start: *raw.Start, End: *end}
	return nil
}

// BookingSettings is the global booking policy. Every field is optional and an
// absent field means "no constraint", which is different from zero.
type BookingSettings struct {
	MinStay        *int         `json:"min_stay,omitempty"`
	MaxStay        *int         `json:"max_stay,omitempty"`
	IncludedAdults *int         `json:"included_adults,omitempty"`
	ExtraAdultFee  *float64     `json:"extra_adult_fee,omitempty"`
	ExtraChildFee  *float64     `json:"extra_child_fee,omitempty"`
	ClosedDates    []ClosedDate `json:"closed_dates,omitempty"`
	CheckInTime    *string      `json:"check_in_time,omitempty"`
	CheckOutTime   *string      `json:"check_out_time,omitempty"`
}

// IncludedAdultsOrDefault returns the number of adults covered by the base price
func (s BookingSettings) IncludedAdultsOrDefault() int {
	if s.IncludedAdults == nil {
		return DefaultIncludedAdults
	}
	return *s.IncludedAdults
}

// ExtraAdultFeeOrZero returns the per-night fee per extra adult
func (s BookingSettings) ExtraAdultFeeOrZero() float64 {
	if s.ExtraAdultFee == nil {
		return 0
	}
	return *s.ExtraAdultFee
}

// ExtraChildFeeOrZero returns the per-night fee per child
func (s BookingSettings) ExtraChildFeeOrZero() float64 {
	if s.ExtraChildFee == nil {
		return 0
	}
	return *s.ExtraChildFee
}

// FirstClosedNight returns the first night of [checkIn, checkOut) that falls on a
// closed date. The check-out date itself is not a night and is never closed.
func (s BookingSettings) FirstClosedNight(checkIn, checkOut Date) (Date, bool) {
	if len(s.ClosedDates) == 0 {
		return Date{}, false
	}
	var hit Date
	found := false
	EachNight(checkIn, checkOut, func(d Date) {
		if found {
			return
		}
		for _, c := range s.ClosedDates {
			if c.Contains(d) {
				hit, found = d, true
				return
			}
		}
	})
	return hit, found
}

// Validate rejects settings that cannot be enforced consistently
func (s BookingSettings) Validate() error {
	if s.MinStay != nil && *s.MinStay < 0 {
		return errors.New("min_stay must not be negative")
	}
	if s.MaxStay != nil && *s.MaxStay < 1 {
		return errors.New("max_stay must be at least 1")
	}
	if s.MinStay != nil && s.MaxStay != nil && *s.MinStay > *s.MaxStay {
		return errors.New("min_stay must not exceed max_stay")
	}
	if s.IncludedAdults != nil && *s.IncludedAdults < 0 {
		return errors.New("included_adults must not be negative")
	}
	if s.ExtraAdultFee != nil && *s.ExtraAdultFee < 0 {
		return errors.New("extra_adult_fee must not be negative")
	}
	if s.ExtraChildFee != nil && *s.ExtraChildFee < 0 {
		return errors.New("extra_child_fee must not be negative")
	}
	return nil
}
