package analytics

import (
	"math"
	"sort"
	"strings"

	"ForexPulse/internal/domain/models"
)

// DefaultNeutralThreshold is the minimum directional probability for a non-neutral label.
const DefaultNeutralThreshold = 0.45

// Label picks Bullish or Bearish only when that side clears the threshold and
// strictly beats the other; everything else is Neutral.
func Label(probs map[string]float64, threshold float64) string {
	bull := probs[models.LabelBullish]
	bear := probs[models.LabelBearish]
	switch {
	case bull >= threshold && bull > bear:
		return models.LabelBullish
	case bear >= threshold && bear > bull:
		return models.LabelBearish
	default:
		return models.LabelNeutral
	}
}

// Confidence is the largest class probability.
func Confidence(probs map[string]float64) float64 {
	best := 0.0
	for _, p := range probs {
		best = math.Max(best, p)
	}
	return best
}

// ConfidenceReason joins the matching reason phrases in fixed order.
func ConfidenceReason(regime models.RegimeSnapshot, sentiment float64) string {
	var parts []string
	if regime.Regime == models.RegimeTrend {
		parts = append(parts, "Trend regime supports directional bias")
	}
	switch {
	case sentiment > 0.2:
		parts = append(parts, "Positive news sentiment")
	case sentiment < -0.2:
		parts = append(parts, "Negative news sentiment")
	}
	if regime.Evidence != nil && regime.Evidence.VolPercentile > VolatileThreshold {
		parts = append(parts, "Elevated volatility")
	}
	if len(parts) == 0 {
		return "Mixed signals; confidence muted"
	}
	return strings.Join(parts, "; ")
}

// TopFeatures returns the n feature columns with the largest absolute value.
// OHLCV and the timestamp are never candidates.
func TopFeatures(row models.FeatureRow, n int) []models.FeatureValue {
	out := make([]models.FeatureValue, 0, len(models.FeatureColumns))
	for _, col := range models.FeatureColumns {
		v, _ := row.Value(col)
		out = append(out, models.FeatureValue{Name: col, Value: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].Value) > math.Abs(out[j].Value) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Explain assembles the explanation payload for the latest feature row.
func Explain(row models.FeatureRow, probs map[string]float64, regime models.RegimeSnapshot, recent []models.NewsHeadline) models.Explanation {
	if recent == nil {
		recent = []models.NewsHeadline{}
	}
	return models.Explanation{
		TopFeatures:      TopFeatures(row, 5),
		Probabilities:    probs,
		Regime:           regime,
		SentimentScore:   row.NewsSentiment24h,
		MacroRiskMinutes: row.MinutesToHighImpactUSD,
		RecentNews:       recent,
		ConfidenceReason: ConfidenceReason(regime, row.NewsSentiment24h),
		Disclaimer:       models.Disclaimer,
	}
}
