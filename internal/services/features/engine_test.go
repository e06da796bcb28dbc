package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func zigzag(n int) []models.Bar {
	bars := make([]models.Bar, n)
	price := 100.0
	for i := range bars {
		step := 0.3
		if i%3 == 0 {
			step = -0.5
		}
		open := price
		price += step
		bars[i] = models.Bar{
			Instrument: "XAUUSD",
			Timeframe:  "1m",
			Timestamp:  t0.Add(time.Duration(i) * time.Minute),
			Open:       open,
			High:       math.Max(open, price) + 0.1,
			Low:        math.Min(open, price) - 0.1,
			Close:      price,
			Volume:     10,
		}
	}
	return bars
}

func TestComputeDropsWarmupRows(t *testing.T) {
	bars := zigzag(100)
	rows := Compute(bars)

	// the 60-bar return is the longest lookback
	require.Len(t, rows, 40)
	assert.Equal(t, bars[60].Timestamp, rows[0].Timestamp)
	for _, r := range rows {
		v, err := r.Vector(models.FeatureColumns[:11])
		require.NoError(t, err)
		for _, x := range v {
			assert.False(t, math.IsNaN(x))
		}
		assert.Zero(t, r.NewsSentiment24h)
	}

	last := rows[len(rows)-1]
	assert.InDelta(t, math.Log1p(bars[99].Close/bars[98].Close-1), last.LogReturn1, 1e-12)
	assert.InDelta(t, bars[99].Close/bars[94].Close-1, last.LogReturn5, 1e-12)
	assert.InDelta(t, bars[99].Close/bars[39].Close-1, last.LogReturn60, 1e-12)
	assert.Greater(t, last.ATR14, 0.0)
	assert.True(t, last.RSI14 > 0 && last.RSI14 < 100)
}

func TestComputeShortSeries(t *testing.T) {
	assert.Empty(t, Compute(zigzag(60)))
	assert.Nil(t, Compute(nil))
}

func TestComputeSortsUnorderedInput(t *testing.T) {
	bars := zigzag(80)
	shuffled := append([]models.Bar(nil), bars...)
	shuffled[0], shuffled[79] = shuffled[79], shuffled[0]

	assert.Equal(t, Compute(bars), Compute(shuffled))
}

func TestRSI(t *testing.T) {
	flat := []float64{1, 1, 1, 1, 1}
	for _, v := range RSI(flat, 3) {
		assert.True(t, math.IsNaN(v))
	}

	up := []float64{1, 2, 3, 4, 5}
	rsi := RSI(up, 3)
	assert.True(t, math.IsNaN(rsi[2]))
	assert.Equal(t, 100.0, rsi[3])

	mixed := []float64{10, 11, 10, 12}
	// gains 1,0,2 losses 0,1,0
	assert.InDelta(t, 100-100/(1+3.0), RSI(mixed, 3)[3], 1e-12)
}

func TestATRUsesPreviousClose(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10.5, 11.5}
	closes := []float64{9.5, 10.8, 12}
	atr := ATR(highs, lows, closes, 2)

	assert.True(t, math.IsNaN(atr[0]))
	// tr = 1, max(0.5, 1.5, 1.0) = 1.5, max(0.5, 1.2, 0.7) = 1.2
	assert.InDelta(t, 1.25, atr[1], 1e-12)
	assert.InDelta(t, 1.35, atr[2], 1e-12)
}
