package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
)

type fixedScore float64

func (f fixedScore) Score(string) float64 { return float64(f) }

func TestAnalyzeInflationHeadline(t *testing.T) {
	a := NewAnalyzer(fixedScore(-0.5))
	got := a.Analyze("US CPI jumps as inflation heats up", "Core prices rose faster than expected. Gold slipped. Traders now see fewer cuts.")

	assert.Equal(t, -0.5, got.SentimentScore)
	assert.Equal(t, models.SentimentBearish, got.SentimentLabel)
	assert.Equal(t, models.ImpactHigh, got.ImpactLevel)
	assert.Equal(t, 3, got.Topics[TopicInflation])
	assert.Contains(t, got.Topics, TopicCommodities)
	assert.Equal(t, []string{"DXY", "US10Y", "USOIL", "XAGUSD", "XAUUSD"}, got.ImpactedAssets)
	assert.True(t, got.IsFundamental)
	assert.Equal(t, "Core prices rose faster than expected. Gold slipped.", got.SummaryCompressed)
	assert.Contains(t, got.Rationale, "Inflation surprises")
}

func TestAnalyzeFallsBackToMacro(t *testing.T) {
	a := NewAnalyzer(fixedScore(0))
	got := a.Analyze("Quiet session ahead", "")

	assert.Equal(t, map[string]int{TopicMacro: 0}, got.Topics)
	assert.Equal(t, []string{DefaultAsset}, got.ImpactedAssets)
	assert.Equal(t, models.ImpactLow, got.ImpactLevel)
	assert.Equal(t, models.SentimentNeutral, got.SentimentLabel)
	// macro counts as fundamental
	assert.True(t, got.IsFundamental)
	assert.Equal(t, "Quiet session ahead", got.SummaryCompressed)
	assert.Equal(t, "Market participants may reassess positioning in XAUUSD based on the news tone (neutral).", got.Rationale)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := NewAnalyzer(NewVaderScorer())
	first := a.Analyze("Oil surges on ceasefire collapse", "Crude rallied sharply.")
	second := a.Analyze("Oil surges on ceasefire collapse", "Crude rallied sharply.")
	assert.Equal(t, first, second)
	assert.Contains(t, first.Topics, TopicGeopolitics)
	assert.Equal(t, models.ImpactMedium, first.ImpactLevel)
	assert.False(t, first.IsFundamental)
}

func TestVaderScorerPolarity(t *testing.T) {
	v := NewVaderScorer()
	assert.Greater(t, v.Score("Great gains, excellent strong rally, investors happy"), 0.2)
	assert.Less(t, v.Score("Terrible crash, awful losses and panic"), -0.2)
}

func TestSentimentLabelBoundsInclusive(t *testing.T) {
	assert.Equal(t, models.SentimentBullish, SentimentLabel(0.2))
	assert.Equal(t, models.SentimentBearish, SentimentLabel(-0.2))
	assert.Equal(t, models.SentimentNeutral, SentimentLabel(0.19))
}

func TestImpactLevel(t *testing.T) {
	assert.Equal(t, models.ImpactHigh, ImpactLevel("fomc minutes", nil))
	assert.Equal(t, models.ImpactMedium, ImpactLevel("governor speech", map[string]int{}))
	assert.Equal(t, models.ImpactMedium, ImpactLevel("missile strike", map[string]int{TopicGeopolitics: 1}))
	assert.Equal(t, models.ImpactLow, ImpactLevel("stocks drift", map[string]int{TopicRisk: 1}))
}

func TestMapAssetsAliases(t *testing.T) {
	got := MapAssets("eur/usd and the nasdaq", map[string]int{})
	assert.Equal(t, []string{"EURUSD", "NAS100"}, got)
}

func TestCompressSummary(t *testing.T) {
	assert.Equal(t, "", CompressSummary("   "))
	assert.Equal(t, "One. Two.", CompressSummary("One.   Two."))
	assert.Equal(t, "One! Two?", CompressSummary("One! Two? Three."))
	require.Equal(t, "v1.5 is out. Really.", CompressSummary("v1.5 is out. Really. Yes."))
}
