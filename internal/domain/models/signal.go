package models

import "time"

// Signal labels.
const (
	LabelBullish = "Bullish"
	LabelBearish = "Bearish"
	LabelNeutral = "Neutral"
)

// ClassOrder is the fixed class order used by models and probability vectors.
var ClassOrder = []string{LabelBearish, LabelNeutral, LabelBullish}

// Regime labels.
const (
	RegimeTrend    = "trend"
	RegimeRange    = "range"
	RegimeVolatile = "volatile"
	RegimeUnknown  = "unknown"
)

// Disclaimer is attached to every explanation.
const Disclaimer = "Signals are probabilistic analytics, not financial advice."

// RegimeEvidence holds the inputs that decided a regime label.
type RegimeEvidence struct {
	VolPercentile float64 `json:"volatility_percentile"`
	TrendUp       bool    `json:"trend_up"`
	TrendDown     bool    `json:"trend_down"`
}

// RegimeSnapshot is the market state computed from the tail of a feature table.
// Evidence is nil when the table was empty.
type RegimeSnapshot struct {
	Regime   string          `json:"regime"`
	Evidence *RegimeEvidence `json:"evidence,omitempty"`
}

// FeatureValue is a named feature value in an explanation.
type FeatureValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Explanation is the structured reasoning stored with every signal.
type Explanation struct {
	TopFeatures      []FeatureValue     `json:"top_features"`
	Probabilities    map[string]float64 `json:"probabilities"`
	Regime           RegimeSnapshot     `json:"regime"`
	SentimentScore   float64            `json:"sentiment_score"`
	MacroRiskMinutes float64            `json:"macro_risk_minutes"`
	RecentNews       []NewsHeadline     `json:"recent_news"`
	ConfidenceReason string             `json:"confidence_reason"`
	Disclaimer       string             `json:"disclaimer"`
}

// Signal is one inference result. Identity is (Instrument, Timestamp, ModelVersion).
type Signal struct {
	ID           int64       `json:"id"`
	Instrument   string      `json:"instrument"`
	Timestamp    time.Time   `json:"ts"`
	Label        string      `json:"label"`
	Confidence   float64     `json:"confidence"`
	Explanation  Explanation `json:"explanation"`
	ModelVersion string      `json:"model_version"`
	CreatedAt    time.Time   `json:"created_at"`
}
