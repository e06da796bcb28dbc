package models

// Requests for query HTTP endpoints. Defined in domain for consistency and reuse.

type PricesRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	Timeframe  string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 1h 1d"`
	Limit      int    `query:"limit" json:"limit" default:"300" validate:"gte=1,lte=5000"`
	Offset     int    `query:"offset" json:"offset" validate:"gte=0"`
}

type NewsRequest struct {
	Asset  string `query:"asset" json:"asset"`
	Impact string `query:"impact" json:"impact" validate:"omitempty,oneof=low medium high"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Offset int    `query:"offset" json:"offset" validate:"gte=0"`
}

type MacroRequest struct {
	Start    string `query:"start" json:"start"`
	End      string `query:"end" json:"end"`
	Currency string `query:"currency" json:"currency"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SignalsRequest struct {
	Instrument string `query:"instrument" json:"instrument"`
	Limit      int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Offset     int    `query:"offset" json:"offset" validate:"gte=0"`
}

type LatestSignalRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
}
