package providers

import (
	"context"
	"errors"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	xhttp "ForexPulse/pkg/http"
	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/util"
)

// RetryPolicy bounds provider retries: attempts in total, exponential backoff from Base up to Max.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Metrics  domrepo.Metrics
	Logger   *logger.Logger
}

func do[T any](ctx context.Context, p RetryPolicy, provider string, fn func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err = fn()
		if !xhttp.IsTemporary(err) || errors.Is(err, ErrMissingSeries) || attempt == attempts {
			return v, err
		}
		if p.Metrics != nil {
			p.Metrics.RecordProviderRetry(provider)
		}
		p.Logger.Warn("provider fetch failed, retrying",
			logger.String("provider", provider),
			logger.Int("attempt", attempt),
			logger.Error(err))
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(util.Backoff(p.Base, p.Max, attempt)):
		}
	}
	return v, err
}

type retryPrices struct {
	inner  domrepo.PriceProvider
	policy RetryPolicy
}

// WithPriceRetry wraps a price provider with p.
func WithPriceRetry(inner domrepo.PriceProvider, p RetryPolicy) domrepo.PriceProvider {
	return &retryPrices{inner: inner, policy: p}
}

func (r *retryPrices) Name() string { return r.inner.Name() }

func (r *retryPrices) Fetch(ctx context.Context, instrument string, since time.Time) ([]models.Bar, error) {
	return do(ctx, r.policy, r.inner.Name(), func() ([]models.Bar, error) {
		return r.inner.Fetch(ctx, instrument, since)
	})
}

type retryNews struct {
	inner  domrepo.NewsProvider
	policy RetryPolicy
}

// WithNewsRetry wraps a news provider with p.
func WithNewsRetry(inner domrepo.NewsProvider, p RetryPolicy) domrepo.NewsProvider {
	return &retryNews{inner: inner, policy: p}
}

func (r *retryNews) Name() string { return r.inner.Name() }

func (r *retryNews) Fetch(ctx context.Context, since time.Time) ([]models.NewsItem, error) {
	return do(ctx, r.policy, r.inner.Name(), func() ([]models.NewsItem, error) {
		return r.inner.Fetch(ctx, since)
	})
}

type retryMacro struct {
	inner  domrepo.MacroProvider
	policy RetryPolicy
}

// WithMacroRetry wraps a macro provider with p.
func WithMacroRetry(inner domrepo.MacroProvider, p RetryPolicy) domrepo.MacroProvider {
	return &retryMacro{inner: inner, policy: p}
}

func (r *retryMacro) Name() string { return r.inner.Name() }

func (r *retryMacro) Fetch(ctx context.Context, since time.Time) ([]models.MacroEvent, error) {
	return do(ctx, r.policy, r.inner.Name(), func() ([]models.MacroEvent, error) {
		return r.inner.Fetch(ctx, since)
	})
}
