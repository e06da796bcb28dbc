package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
)

func TestPercentileRank(t *testing.T) {
	xs := []float64{1, 2, 2, 3}
	assert.InDelta(t, 0.25, PercentileRank(xs, 1), 1e-12)
	// ties take the average rank: (2+3)/2 / 4
	assert.InDelta(t, 0.625, PercentileRank(xs, 2), 1e-12)
	assert.InDelta(t, 1.0, PercentileRank(xs, 3), 1e-12)
	assert.Zero(t, PercentileRank(nil, 1))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name                string
		vol, e20, e50, e200 float64
		want                string
	}{
		{"volatile overrides trend", 0.71, 3, 2, 1, models.RegimeVolatile},
		{"threshold is exclusive", 0.70, 3, 2, 1, models.RegimeTrend},
		{"downtrend", 0.5, 1, 2, 3, models.RegimeTrend},
		{"equal emas are not a trend", 0.5, 2, 2, 1, models.RegimeRange},
		{"mixed order", 0.1, 2, 3, 1, models.RegimeRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.vol, tt.e20, tt.e50, tt.e200)
			assert.Equal(t, tt.want, got.Regime)
			require.NotNil(t, got.Evidence)
			assert.Equal(t, tt.vol, got.Evidence.VolPercentile)
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewRegimeClassifier()
	assert.Equal(t, models.RegimeSnapshot{Regime: models.RegimeUnknown}, c.Classify(nil))

	rows := []models.FeatureRow{
		{Volatility20: 0.5},
		{Volatility20: 0.1},
		{Volatility20: 0.2, EMA20: 3, EMA50: 2, EMA200: 1},
	}
	got := c.Classify(rows)
	assert.Equal(t, models.RegimeTrend, got.Regime)
	assert.True(t, got.Evidence.TrendUp)
	assert.InDelta(t, 2.0/3.0, got.Evidence.VolPercentile, 1e-12)

	rows[2].Volatility20 = 0.9
	assert.Equal(t, models.RegimeVolatile, c.Classify(rows).Regime)
}

func TestLabel(t *testing.T) {
	p := func(bear, neu, bull float64) map[string]float64 {
		return map[string]float64{models.LabelBearish: bear, models.LabelNeutral: neu, models.LabelBullish: bull}
	}
	assert.Equal(t, models.LabelBullish, Label(p(0.2, 0.3, 0.5), 0.45))
	assert.Equal(t, 0.5, Confidence(p(0.2, 0.3, 0.5)))
	assert.Equal(t, models.LabelBullish, Label(p(0.1, 0.45, 0.45), 0.45))
	assert.Equal(t, models.LabelBearish, Label(p(0.5, 0.2, 0.3), 0.45))
	assert.Equal(t, models.LabelNeutral, Label(p(0.3, 0.4, 0.3), 0.45))
	// a tie at the threshold is neutral
	assert.Equal(t, models.LabelNeutral, Label(p(0.45, 0.1, 0.45), 0.45))
	assert.Equal(t, 0.45, Confidence(p(0.1, 0.45, 0.45)))
}

func TestConfidenceReason(t *testing.T) {
	trend := models.RegimeSnapshot{Regime: models.RegimeTrend, Evidence: &models.RegimeEvidence{VolPercentile: 0.2}}
	assert.Equal(t, "Trend regime supports directional bias; Positive news sentiment", ConfidenceReason(trend, 0.3))

	volatile := models.RegimeSnapshot{Regime: models.RegimeVolatile, Evidence: &models.RegimeEvidence{VolPercentile: 0.9}}
	assert.Equal(t, "Negative news sentiment; Elevated volatility", ConfidenceReason(volatile, -0.5))

	assert.Equal(t, "Mixed signals; confidence muted", ConfidenceReason(models.RegimeSnapshot{Regime: models.RegimeRange}, 0.2))
}

func TestExplain(t *testing.T) {
	row := models.FeatureRow{
		Close:                  2000,
		EMA20:                  1990,
		EMA50:                  1980,
		EMA200:                 1950,
		RSI14:                  61,
		ATR14:                  2.5,
		MACD:                   -4,
		NewsSentiment24h:       0.1,
		MinutesToHighImpactUSD: 45,
	}
	probs := map[string]float64{models.LabelBearish: 0.2, models.LabelNeutral: 0.3, models.LabelBullish: 0.5}
	regime := models.RegimeSnapshot{Regime: models.RegimeRange, Evidence: &models.RegimeEvidence{}}

	ex := Explain(row, probs, regime, nil)
	require.Len(t, ex.TopFeatures, 5)
	assert.Equal(t, models.ColEMA20, ex.TopFeatures[0].Name)
	assert.Equal(t, models.ColEMA200, ex.TopFeatures[2].Name)
	assert.Equal(t, models.ColRSI14, ex.TopFeatures[3].Name)
	assert.Equal(t, models.ColMinutesToHighUSD, ex.TopFeatures[4].Name)
	for _, f := range ex.TopFeatures {
		assert.NotEqual(t, "close", f.Name)
	}
	assert.NotNil(t, ex.RecentNews)
	assert.Equal(t, 45.0, ex.MacroRiskMinutes)
	assert.Equal(t, 0.1, ex.SentimentScore)
	assert.Equal(t, models.Disclaimer, ex.Disclaimer)
	assert.Equal(t, "Mixed signals; confidence muted", ex.ConfidenceReason)
}
