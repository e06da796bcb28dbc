package analytics

import (
	"ForexPulse/internal/domain/models"
	domsvc "ForexPulse/internal/domain/service"
)

// VolatileThreshold is the volatility percentile above which the market is volatile.
const VolatileThreshold = 0.70

// RegimeClassifier labels the market state from the tail of a feature table.
type RegimeClassifier struct{}

func NewRegimeClassifier() *RegimeClassifier { return &RegimeClassifier{} }

// Classify ranks the latest volatility_20 against the whole column and checks
// strict EMA ordering on the latest row. Volatility overrides trend.
func (RegimeClassifier) Classify(rows []models.FeatureRow) models.RegimeSnapshot {
	if len(rows) == 0 {
		return models.RegimeSnapshot{Regime: models.RegimeUnknown}
	}
	vols := make([]float64, len(rows))
	for i, r := range rows {
		vols[i] = r.Volatility20
	}
	latest := rows[len(rows)-1]
	return Decide(PercentileRank(vols, vols[len(vols)-1]), latest.EMA20, latest.EMA50, latest.EMA200)
}

// Decide applies the regime rules to precomputed evidence.
func Decide(volPercentile, ema20, ema50, ema200 float64) models.RegimeSnapshot {
	ev := &models.RegimeEvidence{
		VolPercentile: volPercentile,
		TrendUp:       ema20 > ema50 && ema50 > ema200,
		TrendDown:     ema20 < ema50 && ema50 < ema200,
	}
	regime := models.RegimeRange
	switch {
	case volPercentile > VolatileThreshold:
		regime = models.RegimeVolatile
	case ev.TrendUp || ev.TrendDown:
		regime = models.RegimeTrend
	}
	return models.RegimeSnapshot{Regime: regime, Evidence: ev}
}

// PercentileRank is the average-method rank of v within xs divided by len(xs).
// v is expected to be an element of xs.
func PercentileRank(xs []float64, v float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	less, equal := 0, 0
	for _, x := range xs {
		switch {
		case x < v:
			less++
		case x == v:
			equal++
		}
	}
	rank := float64(less) + float64(equal+1)/2
	return rank / float64(len(xs))
}

var _ domsvc.RegimeClassifier = (*RegimeClassifier)(nil)
