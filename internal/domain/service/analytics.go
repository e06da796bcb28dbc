package service

import (
	"ForexPulse/internal/domain/models"
)

// NewsAnalyzer derives a NewsAnalysis from a news item's text. Implementations must be pure.
type NewsAnalyzer interface {
	Analyze(title, summary string) models.NewsAnalysis
}

// RegimeClassifier labels the market state from an ascending feature table.
type RegimeClassifier interface {
	Classify(rows []models.FeatureRow) models.RegimeSnapshot
}
