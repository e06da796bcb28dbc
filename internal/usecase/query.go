package usecase

import (
	"context"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
)

// Page bounds shared by the list queries.
const (
	MaxBarsLimit    = 5000
	MaxNewsLimit    = 500
	MaxMacroLimit   = 1000
	MaxSignalsLimit = 500
)

// Pinger reports the reachability of an optional dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueryUseCase serves the read side of the API.
type QueryUseCase struct {
	store       domrepo.Storage
	redis       Pinger // nil when redis is disabled
	instruments []models.Instrument
}

func NewQueryUseCase(store domrepo.Storage, redis Pinger, instruments []models.Instrument) *QueryUseCase {
	return &QueryUseCase{store: store, redis: redis, instruments: instruments}
}

type GetPricesParams struct {
	Instrument string
	Timeframe  domrepo.Timeframe
	Limit      int
	Offset     int
}

type GetPricesResult struct {
	Instrument string       `json:"instrument"`
	Timeframe  string       `json:"timeframe"`
	Count      int          `json:"count"`
	Bars       []models.Bar `json:"bars"`
}

func (uc *QueryUseCase) GetPrices(ctx context.Context, p GetPricesParams) (*GetPricesResult, error) {
	if p.Instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return nil, fmt.Errorf("unsupported timeframe %q", p.Timeframe)
	}
	p.Limit = clamp(p.Limit, 300, MaxBarsLimit)
	if p.Offset < 0 {
		p.Offset = 0
	}

	bars, err := uc.store.ListBars(ctx, domrepo.BarQuery{
		Instrument: p.Instrument,
		Timeframe:  p.Timeframe,
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list bars: %w", err)
	}
	if bars == nil {
		bars = []models.Bar{}
	}
	return &GetPricesResult{
		Instrument: p.Instrument,
		Timeframe:  p.Timeframe.String(),
		Count:      len(bars),
		Bars:       bars,
	}, nil
}

func (uc *QueryUseCase) ListNews(ctx context.Context, q domrepo.NewsQuery) ([]models.NewsItem, error) {
	q.Limit = clamp(q.Limit, 50, MaxNewsLimit)
	if q.Offset < 0 {
		q.Offset = 0
	}
	items, err := uc.store.ListNews(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	if items == nil {
		items = []models.NewsItem{}
	}
	return items, nil
}

func (uc *QueryUseCase) ListMacro(ctx context.Context, q domrepo.MacroQuery) ([]models.MacroEvent, error) {
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, fmt.Errorf("start must be <= end")
	}
	q.Limit = clamp(q.Limit, 100, MaxMacroLimit)
	events, err := uc.store.ListMacroEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list macro events: %w", err)
	}
	if events == nil {
		events = []models.MacroEvent{}
	}
	return events, nil
}

func (uc *QueryUseCase) ListSignals(ctx context.Context, q domrepo.SignalQuery) ([]models.Signal, error) {
	q.Limit = clamp(q.Limit, 50, MaxSignalsLimit)
	if q.Offset < 0 {
		q.Offset = 0
	}
	out, err := uc.store.ListSignals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	if out == nil {
		out = []models.Signal{}
	}
	return out, nil
}

// LatestSignal returns domrepo.ErrNotFound when the instrument has no signal yet.
func (uc *QueryUseCase) LatestSignal(ctx context.Context, instrument string) (models.Signal, error) {
	if instrument == "" {
		return models.Signal{}, fmt.Errorf("instrument required")
	}
	return uc.store.LatestSignal(ctx, instrument)
}

func (uc *QueryUseCase) Instruments() []models.Instrument {
	return uc.instruments
}

// NewsInsertedSince feeds the websocket push.
func (uc *QueryUseCase) NewsInsertedSince(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	return uc.store.NewsInsertedSince(ctx, since, clamp(limit, 50, MaxNewsLimit))
}

type HealthResult struct {
	Jobs    []models.JobHealth `json:"jobs"`
	StoreOK bool               `json:"store_ok"`
	RedisOK bool               `json:"redis_ok"`
}

func (uc *QueryUseCase) Health(ctx context.Context) (*HealthResult, error) {
	jobs, err := uc.store.ListJobHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("list job health: %w", err)
	}
	if jobs == nil {
		jobs = []models.JobHealth{}
	}
	res := &HealthResult{Jobs: jobs, StoreOK: uc.store.Health(ctx) == nil}
	if uc.redis != nil {
		res.RedisOK = uc.redis.Ping(ctx) == nil
	}
	return res, nil
}

func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
