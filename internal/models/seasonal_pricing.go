package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// SeasonalPricingKind identifies which shape of seasonal override a room carries
type SeasonalPricingKind string

const (
	SeasonalPricingNone       SeasonalPricingKind = ""
	SeasonalPricingRangeRules SeasonalPricingKind = "range_rules"
	SeasonalPricingDateMap    SeasonalPricingKind = "date_map"
)

// SeasonalRule overrides the nightly price for every date in [Start, End] (both inclusive)
type SeasonalRule struct {
	Start Date    `json:"start"`
	End   Date    `json:"end"`
	Price float64 `json:"price"`
}

// Covers reports whether the rule applies to the given night
func (r SeasonalRule) Covers(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// UnmarshalJSON accepts both start/end and start_date/end_date keys
func (r *SeasonalRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start     *Date    `json:"start"`
		End       *Date    `json:"end"`
		StartDate *Date    `json:"start_date"`
		EndDate   *Date    `json:"end_date"`
		Price     *float64 `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, end := raw.Start, raw.End
	if start == nil {
		start = raw.StartDate
	}
	if end == nil {
		end = raw.EndDate
	}
	if start == nil || end == nil || raw.Price == nil {
		return errors.New("seasonal rule requires start, end and price")
	}
	if end.Before(*start) {
		return fmt.Errorf("seasonal rule ends (%s) before it starts (%s)", end, start)
	}

	r.Start, r.End, r.Price = *start, *end, *raw.Price
	return nil
}

// SeasonalPricing is either an ordered list of range rules or an exact-date price
// map. The two forms are mutually exclusive; the zero value carries no overrides.
type SeasonalPricing struct {
	kind  SeasonalPricingKind
	rules []SeasonalRule
	dates map[Date]float64
}

// NewRangeRules builds a range-rule pricing. Rule order is the match order.
func NewRangeRules(rules ...SeasonalRule) SeasonalPricing {
	return SeasonalPricing{kind: SeasonalPricingRangeRules, rules: append([]SeasonalRule(nil), rules...)}
}

// NewDateMap builds an exact-date pricing
func NewDateMap(prices map[Date]float64) SeasonalPricing {
	m := make(map[Date]float64, len(prices))
	for d, p := range prices {
		m[d] = p
	}
	return SeasonalPricing{kind: SeasonalPricingDateMap, dates: m}
}

// Kind returns which variant is held
func (s SeasonalPricing) Kind() SeasonalPricingKind {
	return s.kind
}

// Rules returns the range rules (nil unless Kind is range_rules)
func (s SeasonalPricing) Rules() []SeasonalRule {
	return s.rules
}

// PriceFor resolves the override price for one night. Range rules are scanned in
// order and the first covering rule wins; the date map only matches exact keys.
func (s SeasonalPricing) PriceFor(d Date) (float64, bool) {
	switch s.kind {
	case SeasonalPricingRangeRules:
		for _, r := range s.rules {
			if r.Covers(d) {
				return r.Price, true
			}
		}
	case SeasonalPricingDateMap:
		if p, ok := s.dates[d]; ok {
			return p, true
		}
	}
	return 0, false
}

// MarshalJSON renders range rules as an array and the date map as an object
func (s SeasonalPricing) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case SeasonalPricingRangeRules:
		return json.Marshal(s.rules)
	case SeasonalPricingDateMap:
		keys := make([]Date, 0, len(s.dates))
		for d := range s.dates {
			keys = append(keys, d)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, d := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(d.String())
			v, err := json.Marshal(s.dates[d])
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON detects the variant from the JSON shape: array → range rules,
// object → date map, null → no overrides.
func (s *SeasonalPricing) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = SeasonalPricing{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var rules []SeasonalRule
		if err := json.Unmarshal(trimmed, &rules); err != nil {
			return fmt.Errorf("invalid seasonal price rules: %w", err)
		}
		*s = NewRangeRules(rules...)
		return nil
	case '{':
		var raw map[string]float64
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("invalid seasonal price map: %w", err)
		}
		prices := make(map[Date]float64, len(raw))
		for k, v := range raw {
			d, err := ParseDate(k)
			if err != nil {
				return fmt.Errorf("invalid seasonal price map key: %w", err)
			}
			prices[d] = v
		}
		*s = NewDateMap(prices)
		return nil
	default:
		return errors.New("seasonal prices must be an array of rules or a date map")
	}
}

// Value implements the driver.Valuer interface
func (s SeasonalPricing) Value() (driver.Value, error) {
	if s.kind == SeasonalPricingNone {
		return nil, nil
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (s *SeasonalPricing) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = SeasonalPricing{}
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into SeasonalPricing", value)
	}
}
