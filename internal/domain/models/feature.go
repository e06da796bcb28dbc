package models

import (
	"fmt"
	"time"
)

// Feature column names.
const (
	ColLogReturn1       = "log_return_1"
	ColLogReturn5       = "log_return_5"
	ColLogReturn60      = "log_return_60"
	ColVolatility20     = "volatility_20"
	ColEMA20            = "ema_20"
	ColEMA50            = "ema_50"
	ColEMA200           = "ema_200"
	ColRSI14            = "rsi_14"
	ColMACD             = "macd"
	ColMACDSignal       = "macd_signal"
	ColATR14            = "atr_14"
	ColNewsSentiment24h = "news_sentiment_24h"
	ColMinutesToHighUSD = "minutes_to_high_impact_usd"
)

// FeatureColumns is the ordered model input: 11 technical indicators then 2 context columns.
var FeatureColumns = []string{
	ColLogReturn1, ColLogReturn5, ColLogReturn60, ColVolatility20,
	ColEMA20, ColEMA50, ColEMA200, ColRSI14, ColMACD, ColMACDSignal, ColATR14,
	ColNewsSentiment24h, ColMinutesToHighUSD,
}

// FeatureRow is one bar plus its derived indicators and context columns.
type FeatureRow struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64

	LogReturn1   float64
	LogReturn5   float64
	LogReturn60  float64
	Volatility20 float64
	EMA20        float64
	EMA50        float64
	EMA200       float64
	RSI14        float64
	MACD         float64
	MACDSignal   float64
	ATR14        float64

	NewsSentiment24h       float64
	MinutesToHighImpactUSD float64
}

// Value returns a feature column by name.
func (r FeatureRow) Value(col string) (float64, bool) {
	switch col {
	case ColLogReturn1:
		return r.LogReturn1, true
	case ColLogReturn5:
		return r.LogReturn5, true
	case ColLogReturn60:
		return r.LogReturn60, true
	case ColVolatility20:
		return r.Volatility20, true
	case ColEMA20:
		return r.EMA20, true
	case ColEMA50:
		return r.EMA50, true
	case ColEMA200:
		return r.EMA200, true
	case ColRSI14:
		return r.RSI14, true
	case ColMACD:
		return r.MACD, true
	case ColMACDSignal:
		return r.MACDSignal, true
	case ColATR14:
		return r.ATR14, true
	case ColNewsSentiment24h:
		return r.NewsSentiment24h, true
	case ColMinutesToHighUSD:
		return r.MinutesToHighImpactUSD, true
	}
	return 0, false
}

// Vector returns the values of cols in order, failing on an unknown column.
func (r FeatureRow) Vector(cols []string) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		v, ok := r.Value(c)
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q", c)
		}
		out[i] = v
	}
	return out, nil
}
