package news

import "ForexPulse/internal/domain/models"

// Topic names.
const (
	TopicInflation   = "inflation"
	TopicRates       = "rates"
	TopicGrowth      = "growth"
	TopicGeopolitics = "geopolitics"
	TopicRisk        = "risk"
	TopicCommodities = "commodities"
	TopicMacro       = "macro"
)

// DefaultAsset is used when no alias or topic maps to an asset.
const DefaultAsset = "XAUUSD"

type topicRule struct {
	Topic    string
	Keywords []string
	Assets   []string
}

// topicRules is ordered; the order only affects iteration, never the result.
var topicRules = []topicRule{
	{
		Topic:    TopicInflation,
		Keywords: []string{"cpi", "inflation", "pce", "ppi", "price pressures", "core prices"},
		Assets:   []string{"XAUUSD", "DXY", "US10Y"},
	},
	{
		Topic:    TopicRates,
		Keywords: []string{"rate hike", "rate cut", "interest rate", "fomc", "ecb", "boj", "boe", "policy rate"},
		Assets:   []string{"EURUSD", "GBPUSD", "USDJPY", "DXY"},
	},
	{
		Topic:    TopicGrowth,
		Keywords: []string{"gdp", "pmi", "manufacturing", "services", "retail sales", "jobs", "nfp"},
		Assets:   []string{"USDJPY", "EURUSD", "GBPUSD", "SPX"},
	},
	{
		Topic:    TopicGeopolitics,
		Keywords: []string{"war", "conflict", "sanction", "missile", "ceasefire", "geopolitical"},
		Assets:   []string{"XAUUSD", "USOIL", "XAGUSD"},
	},
	{
		Topic:    TopicRisk,
		Keywords: []string{"risk-on", "risk-off", "equities", "stocks", "bond yields", "volatility"},
		Assets:   []string{"SPX", "NAS100", "USDJPY"},
	},
	{
		Topic:    TopicCommodities,
		Keywords: []string{"oil", "crude", "gold", "silver", "copper", "commodity"},
		Assets:   []string{"XAUUSD", "USOIL", "XAGUSD"},
	},
}

type alias struct {
	Needle string
	Symbol string
}

var assetAliases = []alias{
	{"xau/usd", "XAUUSD"},
	{"gold", "XAUUSD"},
	{"eur/usd", "EURUSD"},
	{"gbp/usd", "GBPUSD"},
	{"usd/jpy", "USDJPY"},
	{"dxy", "DXY"},
	{"us dollar", "DXY"},
	{"oil", "USOIL"},
	{"brent", "USOIL"},
	{"wti", "USOIL"},
	{"silver", "XAGUSD"},
	{"s&p", "SPX"},
	{"nasdaq", "NAS100"},
	{"nifty", "NIFTY"},
}

var (
	highImpactKeywords   = []string{"cpi", "fomc", "rate", "nfp", "central bank", "inflation", "jobs report"}
	mediumImpactKeywords = []string{"speech", "minutes", "forecast", "guidance", "trade balance"}
	// Topics that lift an item to medium impact on their own.
	mediumImpactTopics = []string{TopicInflation, TopicRates, TopicGeopolitics}
	fundamentalTopics  = []string{TopicMacro, TopicRates, TopicInflation}
)

type rationaleRule struct {
	Topic string
	Text  string
}

// rationaleRules are consulted in priority order; the first present topic wins.
var rationaleRules = []rationaleRule{
	{TopicInflation, "Inflation surprises shift rate expectations, impacting USD strength and real yields, which typically moves gold and major FX pairs."},
	{TopicRates, "Interest-rate guidance drives yield differentials, influencing USD crosses and risk appetite."},
	{TopicGeopolitics, "Geopolitical risk can trigger safe-haven demand, supporting gold and pressuring risk assets."},
	{TopicCommodities, "Commodity price moves affect inflation expectations and commodity-linked FX pairs."},
	{TopicGrowth, "Growth data shifts risk sentiment and rate expectations, impacting FX majors and indices."},
	{TopicRisk, "Risk sentiment swings drive flows into or out of safe-haven assets like JPY and gold."},
}

const genericRationale = "Market participants may reassess positioning in %s based on the news tone (%s)."

// Sentiment label thresholds; both bounds are inclusive.
const (
	BullishThreshold = 0.2
	BearishThreshold = -0.2
)

// SentimentLabel maps a compound score onto bullish, bearish or neutral.
func SentimentLabel(score float64) string {
	switch {
	case score >= BullishThreshold:
		return models.SentimentBullish
	case score <= BearishThreshold:
		return models.SentimentBearish
	default:
		return models.SentimentNeutral
	}
}
