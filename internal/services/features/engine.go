package features

import (
	"math"
	"sort"

	"ForexPulse/internal/domain/models"
)

// Lookback constants for the technical indicators.
const (
	volWindow  = 20
	rsiWindow  = 14
	atrWindow  = 14
	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// Compute derives the technical indicator columns for an ascending 1m bar
// series. Rows where any indicator is undefined are dropped, never filled.
// Context columns are left at zero; see JoinContext.
func Compute(bars []models.Bar) []models.FeatureRow {
	n := len(bars)
	if n == 0 {
		return nil
	}
	bars = sortedBars(bars)

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	returns := PctChange(closes, 1)
	logRet1 := Log1p(returns)
	ret5 := PctChange(closes, 5)
	ret60 := PctChange(closes, 60)
	vol20 := RollingStd(returns, volWindow)
	ema20 := EMA(closes, 20)
	ema50 := EMA(closes, 50)
	ema200 := EMA(closes, 200)
	rsi := RSI(closes, rsiWindow)
	fast := EMA(closes, macdFast)
	slow := EMA(closes, macdSlow)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := EMA(macd, macdSignal)
	atr := ATR(highs, lows, closes, atrWindow)

	out := make([]models.FeatureRow, 0, n)
	for i, b := range bars {
		row := models.FeatureRow{
			Timestamp:    b.Timestamp,
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			LogReturn1:   logRet1[i],
			LogReturn5:   ret5[i],
			LogReturn60:  ret60[i],
			Volatility20: vol20[i],
			EMA20:        ema20[i],
			EMA50:        ema50[i],
			EMA200:       ema200[i],
			RSI14:        rsi[i],
			MACD:         macd[i],
			MACDSignal:   signal[i],
			ATR14:        atr[i],
		}
		if hasUndefined(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// RSI is 100 - 100/(1+RS) where RS is the plain rolling mean of gains over the
// rolling mean of losses. A window with no movement at all is undefined.
func RSI(closes []float64, window int) []float64 {
	delta := Diff(closes)
	gains := make([]float64, len(delta))
	losses := make([]float64, len(delta))
	for i, d := range delta {
		if math.IsNaN(d) {
			gains[i], losses[i] = d, d
			continue
		}
		gains[i] = math.Max(d, 0)
		losses[i] = math.Max(-d, 0)
	}
	avgGain := RollingMean(gains, window)
	avgLoss := RollingMean(losses, window)

	out := make([]float64, len(closes))
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// ATR is the rolling mean of true range. The first bar has no previous close,
// so its true range is high-low.
func ATR(highs, lows, closes []float64, window int) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return RollingMean(tr, window)
}

func hasUndefined(r models.FeatureRow) bool {
	for _, v := range []float64{
		r.LogReturn1, r.LogReturn5, r.LogReturn60, r.Volatility20,
		r.EMA20, r.EMA50, r.EMA200, r.RSI14, r.MACD, r.MACDSignal, r.ATR14,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func sortedBars(bars []models.Bar) []models.Bar {
	less := func(s []models.Bar) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Timestamp.Before(s[j].Timestamp) }
	}
	if sort.SliceIsSorted(bars, less(bars)) {
		return bars
	}
	cp := make([]models.Bar, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, less(cp))
	return cp
}
