package models

import "time"

// Bar is one OHLCV observation for an instrument, timeframe and bucket start.
// Identity is (Instrument, Timeframe, Timestamp).
type Bar struct {
	Instrument string    `json:"instrument" db:"instrument"`
	Timeframe  string    `json:"timeframe" db:"timeframe"`
	Timestamp  time.Time `json:"ts" db:"ts"`
	Open       float64   `json:"open" db:"open"`
	High       float64   `json:"high" db:"high"`
	Low        float64   `json:"low" db:"low"`
	Close      float64   `json:"close" db:"close"`
	Volume     float64   `json:"volume" db:"volume"`
	Bid        *float64  `json:"bid,omitempty" db:"bid"`
	Ask        *float64  `json:"ask,omitempty" db:"ask"`
}

// Instrument is a tradable symbol known to the system.
type Instrument struct {
	Symbol     string  `json:"symbol"`
	AssetClass string  `json:"asset_class"`
	TickSize   float64 `json:"tick_size"`
}
