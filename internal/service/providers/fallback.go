package providers

import (
	"context"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/pkg/logger"
)

// NewsFallback serves from primary and switches to fallback for a fetch where primary fails.
type NewsFallback struct {
	primary  domrepo.NewsProvider
	fallback domrepo.NewsProvider
	l        *logger.Logger
}

func NewNewsFallback(primary, fallback domrepo.NewsProvider, l *logger.Logger) *NewsFallback {
	return &NewsFallback{primary: primary, fallback: fallback, l: l}
}

func (p *NewsFallback) Name() string { return p.primary.Name() }

func (p *NewsFallback) Fetch(ctx context.Context, since time.Time) ([]models.NewsItem, error) {
	items, err := p.primary.Fetch(ctx, since)
	if err == nil {
		return items, nil
	}
	p.l.Error("primary news provider failed, falling back",
		logger.String("primary", p.primary.Name()),
		logger.String("fallback", p.fallback.Name()),
		logger.Error(err))
	return p.fallback.Fetch(ctx, since)
}

var _ domrepo.NewsProvider = (*NewsFallback)(nil)
