package repository

import (
	"context"
	"time"

	"ForexPulse/internal/domain/models"
)

// BarReader provides read-only access to bars for the feature pipeline.
// Results are ascending by timestamp. A zero from or to leaves that side unbounded.
type BarReader interface {
	GetBars(ctx context.Context, instrument string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, instrument string, n int, tf Timeframe) ([]models.Bar, error)
}

// ContextReader provides the news and macro history joined into feature tables.
type ContextReader interface {
	NewsPublishedBetween(ctx context.Context, from, to time.Time) ([]models.NewsItem, error)
	MacroEventsBetween(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error)
}
