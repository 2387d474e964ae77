package models

import (
	"time"

	"cloud.google.com/go/civil"
)

type PricePoint struct {
	Date     civil.Date `json:"date"`
	PriceUSD float64    `json:"priceUsd"`
}

// PriceSeries is ordered ascending by date with one point per date.
type PriceSeries []PricePoint

func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// At returns the latest point dated on or before d.
func (s PriceSeries) At(d civil.Date) (PricePoint, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].Date.After(d) {
			return s[i], true
		}
	}
	return PricePoint{}, false
}

// Lookup returns the point dated exactly d.
func (s PriceSeries) Lookup(d civil.Date) (PricePoint, bool) {
	for _, p := range s {
		if p.Date == d {
			return p, true
		}
	}
	return PricePoint{}, false
}

// DateOfMillis converts a remote epoch-millisecond timestamp to its UTC calendar date.
func DateOfMillis(ms int64) civil.Date {
	return civil.DateOf(time.UnixMilli(ms).UTC())
}

// TodayUTC returns the current UTC calendar date.
func TodayUTC(now time.Time) civil.Date {
	return civil.DateOf(now.UTC())
}
