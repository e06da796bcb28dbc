package usecase

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"ForexPulse/internal/domain/models"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// minuteBars is a seeded random walk with a slow cycle, enough to give every label class.
func minuteBars(instrument string, n int, seed int64) []models.Bar {
	r := rand.New(rand.NewSource(seed))
	price := 100.0
	out := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		open := price
		price += 0.05*math.Sin(float64(i)/40) + r.NormFloat64()*0.08
		hi := math.Max(open, price) + r.Float64()*0.03
		lo := math.Min(open, price) - r.Float64()*0.03
		out = append(out, models.Bar{
			Instrument: instrument,
			Timeframe:  "1m",
			Timestamp:  t0.Add(time.Duration(i) * time.Minute),
			Open:       open,
			High:       hi,
			Low:        lo,
			Close:      price,
			Volume:     float64(10 + r.Intn(50)),
		})
	}
	return out
}

type stubPrices struct {
	bars  []models.Bar
	err   error
	since []time.Time
}

func (s *stubPrices) Name() string { return "stub_prices" }

func (s *stubPrices) Fetch(_ context.Context, _ string, since time.Time) ([]models.Bar, error) {
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Bar
	for _, b := range s.bars {
		if since.IsZero() || b.Timestamp.After(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

type stubNews struct {
	items []models.NewsItem
	err   error
	since []time.Time
}

func (s *stubNews) Name() string { return "stub_news" }

func (s *stubNews) Fetch(_ context.Context, since time.Time) ([]models.NewsItem, error) {
	s.since = append(s.since, since)
	return s.items, s.err
}

type stubMacro struct {
	events []models.MacroEvent
	err    error
}

func (s *stubMacro) Name() string { return "stub_macro" }

func (s *stubMacro) Fetch(context.Context, time.Time) ([]models.MacroEvent, error) {
	return s.events, s.err
}

type recordingPublisher struct {
	mu      sync.Mutex
	news    []models.NewsItem
	signals []models.Signal
	err     error
}

func (p *recordingPublisher) PublishNews(_ context.Context, item models.NewsItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.news = append(p.news, item)
	return p.err
}

func (p *recordingPublisher) PublishSignal(_ context.Context, s models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingAnalyzer struct {
	calls int
}

func (a *countingAnalyzer) Analyze(title, summary string) models.NewsAnalysis {
	a.calls++
	return models.NewsAnalysis{
		SummaryCompressed: summary,
		SentimentScore:    0.5,
		SentimentLabel:    models.SentimentBullish,
		ImpactLevel:       models.ImpactMedium,
		ImpactedAssets:    []string{"XAUUSD"},
		Topics:            map[string]int{"gold": 1},
		Rationale:         title,
	}
}
