package services

import (
	"errors"
	"math"

	"github.com/riadtaziri/booking-backend/internal/models"
)

// NightlyRate is the price charged for one night of a stay
type NightlyRate struct {
	Date     models.Date `json:"date"`
	Price    float64     `json:"price"`
	Seasonal bool        `json:"seasonal"`
}

// PriceBreakdown itemizes a quote
type PriceBreakdown struct {
	Nightly         []NightlyRate `json:"nightly"`
	RoomTotal       float64       `json:"room_total"`
	ExtraAdults     int           `json:"extra_adults"`
	ExtraAdultTotal float64       `json:"extra_adult_total"`
	Children        int           `json:"children"`
	ChildrenTotal   float64       `json:"children_total"`
}

// PriceQuote is the priced stay. BasePrice is the room's standard nightly rate.
type PriceQuote struct {
	Nights     int            `json:"nights"`
	BasePrice  float64        `json:"base_price"`
	TotalPrice float64        `json:"total_price"`
	Currency   string         `json:"currency"`
	Breakdown  PriceBreakdown `json:"breakdown"`
}

var errEmptyStay = errors.New("stay must be at least one night")

// CalculatePrice sums the nightly rate of every night in [checkIn, checkOut)
// and adds the per-night fees for adults above the included count and for
// every child. The total is rounded to 2 decimals.
func CalculatePrice(room *models.Room, settings models.BookingSettings, checkIn, checkOut models.Date, adults, children int) (*PriceQuote, error) {
	nights := models.NightsBetween(checkIn, checkOut)
	if nights <= 0 {
		return nil, errEmptyStay
	}

	breakdown := PriceBreakdown{Nightly: make([]NightlyRate, 0, nights)}
	models.EachNight(checkIn, checkOut, func(d models.Date) {
		price, seasonal := room.SeasonalPrices.PriceFor(d)
		if !seasonal {
			price = room.BasePrice
		}
		breakdown.Nightly = append(breakdown.Nightly, NightlyRate{Date: d, Price: price, Seasonal: seasonal})
		breakdown.RoomTotal += price
	})

	breakdown.ExtraAdults = adults - settings.IncludedAdultsOrDefault()
	if breakdown.ExtraAdults < 0 {
		breakdown.ExtraAdults = 0
	}
	breakdown.ExtraAdultTotal = float64(breakdown.ExtraAdults) * settings.ExtraAdultFeeOrZero() * float64(nights)

	breakdown.Children = children
	breakdown.ChildrenTotal = float64(children) * settings.ExtraChildFeeOrZero() * float64(nights)

	total := breakdown.RoomTotal + breakdown.ExtraAdultTotal + breakdown.ChildrenTotal

	breakdown.RoomTotal = roundAmount(breakdown.RoomTotal)
	breakdown.ExtraAdultTotal = roundAmount(breakdown.ExtraAdultTotal)
	breakdown.ChildrenTotal = roundAmount(breakdown.ChildrenTotal)

	return &PriceQuote{
		Nights:     nights,
		BasePrice:  room.BasePrice,
		TotalPrice: roundAmount(total),
		Breakdown:  breakdown,
	}, nil
}

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
