package models

import "time"

// Sentiment labels.
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Impact levels shared by news and macro events.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// NewsItem is a headline identified by URL, with its rule-based analysis attached.
type NewsItem struct {
	ID          int64        `json:"id"`
	Source      string       `json:"source"`
	URL         string       `json:"url"`
	PublishedAt time.Time    `json:"published_at"`
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Analysis    NewsAnalysis `json:"analysis"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewsAnalysis is derived deterministically from a news item's title and summary.
type NewsAnalysis struct {
	SummaryCompressed string         `json:"summary_compressed"`
	SentimentScore    float64        `json:"sentiment_score"`
	SentimentLabel    string         `json:"sentiment_label"`
	ImpactLevel       string         `json:"impact_level"`
	ImpactedAssets    []string       `json:"impacted_assets"`
	Topics            map[string]int `json:"topics"`
	Rationale         string         `json:"rationale"`
	IsFundamental     bool           `json:"is_fundamental"`
}

// NewsHeadline is the short form of a news item embedded in signal explanations.
type NewsHeadline struct {
	Title          string    `json:"title"`
	PublishedAt    time.Time `json:"published_at"`
	SentimentLabel string    `json:"sentiment_label"`
	URL            string    `json:"url"`
}
