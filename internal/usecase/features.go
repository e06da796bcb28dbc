package usecase

import (
	"context"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/services/features"
)

// featureTable computes indicators over bars and joins the news and macro context
// covering them. News reaches back one sentiment window before the first bar;
// macro events are loaded without an upper bound so the last rows see upcoming releases.
func featureTable(ctx context.Context, cr domrepo.ContextReader, bars []models.Bar) ([]models.FeatureRow, []models.NewsItem, error) {
	rows := features.Compute(bars)
	if len(rows) == 0 {
		return nil, nil, nil
	}
	first, last := rows[0].Timestamp, rows[len(rows)-1].Timestamp

	news, err := cr.NewsPublishedBetween(ctx, first.Add(-features.SentimentWindow), last)
	if err != nil {
		return nil, nil, fmt.Errorf("load news context: %w", err)
	}
	macro, err := cr.MacroEventsBetween(ctx, first, time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("load macro context: %w", err)
	}
	return features.JoinContext(rows, news, macro), news, nil
}
