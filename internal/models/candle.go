package models

import "time"

type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Rising bool      `json:"rising"`
}

// MarketPoint is a raw [timestamp_ms, value] pair from the market-data API.
type MarketPoint struct {
	TimestampMs int64
	Value       float64
}

type MarketChart struct {
	Prices       []MarketPoint
	TotalVolumes []MarketPoint
}
