package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
)

type barKey struct {
	instrument string
	timeframe  string
	ts         int64
}

type macroKey struct {
	ts       int64
	currency string
	name     string
	source   string
}

type signalKey struct {
	instrument string
	ts         int64
	version    string
}

// MemoryStore is an in-process Storage used by the demo backend and tests.
type MemoryStore struct {
	mu sync.RWMutex

	bars    map[barKey]models.Bar
	news    map[string]*models.NewsItem
	macro   map[macroKey]models.MacroEvent
	signals map[signalKey]models.Signal
	health  map[string]models.JobHealth

	seq int64
	now func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the insertion clock.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		bars:    make(map[barKey]models.Bar),
		news:    make(map[string]*models.NewsItem),
		macro:   make(map[macroKey]models.MacroEvent),
		signals: make(map[signalKey]models.Signal),
		health:  make(map[string]models.JobHealth),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Init(context.Context) error   { return nil }
func (s *MemoryStore) Health(context.Context) error { return nil }
func (s *MemoryStore) Close() error                 { return nil }

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

// --- bars ---

func (s *MemoryStore) InsertBar(_ context.Context, b models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Timestamp = b.Timestamp.UTC()
	k := barKey{b.Instrument, b.Timeframe, b.Timestamp.UnixNano()}
	if _, ok := s.bars[k]; ok {
		return domrepo.ErrAlreadyExists
	}
	s.bars[k] = b
	return nil
}

func (s *MemoryStore) filterBars(instrument string, tf domrepo.Timeframe, from, to time.Time) []models.Bar {
	var out []models.Bar
	for _, b := range s.bars {
		if b.Instrument != instrument || b.Timeframe != string(tf) {
			continue
		}
		if !from.IsZero() && b.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *MemoryStore) GetBars(_ context.Context, instrument string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterBars(instrument, tf, from, to), nil
}

func (s *MemoryStore) GetLatestNBars(ctx context.Context, instrument string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	return s.ListBars(ctx, domrepo.BarQuery{Instrument: instrument, Timeframe: tf, Limit: n})
}

func (s *MemoryStore) ListBars(_ context.Context, q domrepo.BarQuery) ([]models.Bar, error) {
	s.mu.RLock()
	all := s.filterBars(q.Instrument, q.Timeframe, q.From, q.To)
	s.mu.RUnlock()

	// newest page first, then back to ascending
	end := len(all) - q.Offset
	if end <= 0 {
		return []models.Bar{}, nil
	}
	start := end - q.Limit
	if q.Limit <= 0 || start < 0 {
		start = 0
	}
	return append([]models.Bar(nil), all[start:end]...), nil
}

func (s *MemoryStore) LatestBarTime(_ context.Context, instrument string, tf domrepo.Timeframe) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest time.Time
		found  bool
	)
	for _, b := range s.bars {
		if b.Instrument == instrument && b.Timeframe == string(tf) && (!found || b.Timestamp.After(latest)) {
			latest, found = b.Timestamp, true
		}
	}
	return latest, found, nil
}

// --- news ---

func (s *MemoryStore) UpsertNews(_ context.Context, item models.NewsItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.news[item.URL]; ok {
		cur.Title = item.Title
		cur.Summary = item.Summary
		cur.Analysis = item.Analysis
		return false, nil
	}
	item.ID = s.nextID()
	item.PublishedAt = item.PublishedAt.UTC()
	item.CreatedAt = s.now().UTC()
	s.news[item.URL] = &item
	return true, nil
}

func (s *MemoryStore) allNews() []models.NewsItem {
	out := make([]models.NewsItem, 0, len(s.news))
	for _, n := range s.news {
		out = append(out, *n)
	}
	return out
}

func (s *MemoryStore) ListNews(_ context.Context, q domrepo.NewsQuery) ([]models.NewsItem, error) {
	s.mu.RLock()
	all := s.allNews()
	s.mu.RUnlock()

	asset := strings.ToUpper(q.Asset)
	filtered := all[:0]
	for _, n := range all {
		if q.Impact != "" && n.Analysis.ImpactLevel != q.Impact {
			continue
		}
		if asset != "" && !containsString(n.Analysis.ImpactedAssets, asset) {
			continue
		}
		filtered = append(filtered, n)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].PublishedAt.Equal(filtered[j].PublishedAt) {
			return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
		}
		return filtered[i].ID > filtered[j].ID
	})
	return page(filtered, q.Offset, q.Limit), nil
}

func (s *MemoryStore) NewsInsertedSince(_ context.Context, since time.Time, limit int) ([]models.NewsItem, error) {
	s.mu.RLock()
	all := s.allNews()
	s.mu.RUnlock()

	var out []models.NewsItem
	for _, n := range all {
		if n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, 0, limit), nil
}

func (s *MemoryStore) NewsPublishedBetween(_ context.Context, from, to time.Time) ([]models.NewsItem, error) {
	s.mu.RLock()
	all := s.allNews()
	s.mu.RUnlock()

	var out []models.NewsItem
	for _, n := range all {
		if !from.IsZero() && n.PublishedAt.Before(from) {
			continue
		}
		if !to.IsZero() && n.PublishedAt.After(to) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

func (s *MemoryStore) LatestNewsTime(context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest time.Time
		found  bool
	)
	for _, n := range s.news {
		if !found || n.PublishedAt.After(latest) {
			latest, found = n.PublishedAt, true
		}
	}
	return latest, found, nil
}

// --- macro ---

func (s *MemoryStore) InsertMacroEvent(_ context.Context, e models.MacroEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Time = e.Time.UTC()
	k := macroKey{e.Time.UnixNano(), e.Currency, e.Name, e.Source}
	if _, ok := s.macro[k]; ok {
		return domrepo.ErrAlreadyExists
	}
	e.ID = s.nextID()
	s.macro[k] = e
	return nil
}

func (s *MemoryStore) ListMacroEvents(ctx context.Context, q domrepo.MacroQuery) ([]models.MacroEvent, error) {
	all, _ := s.MacroEventsBetween(ctx, q.From, q.To)
	cur := strings.ToUpper(q.Currency)
	out := all[:0]
	for _, e := range all {
		if cur != "" && e.Currency != cur {
			continue
		}
		out = append(out, e)
	}
	return page(out, 0, q.Limit), nil
}

func (s *MemoryStore) MacroEventsBetween(_ context.Context, from, to time.Time) ([]models.MacroEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.MacroEvent
	for _, e := range s.macro {
		if !from.IsZero() && e.Time.Before(from) {
			continue
		}
		if !to.IsZero() && e.Time.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- signals ---

func (s *MemoryStore) InsertSignal(_ context.Context, sig models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.Timestamp = sig.Timestamp.UTC()
	k := signalKey{sig.Instrument, sig.Timestamp.UnixNano(), sig.ModelVersion}
	if _, ok := s.signals[k]; ok {
		return domrepo.ErrAlreadyExists
	}
	sig.ID = s.nextID()
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now().UTC()
	}
	s.signals[k] = sig
	return nil
}

func (s *MemoryStore) ListSignals(_ context.Context, q domrepo.SignalQuery) ([]models.Signal, error) {
	s.mu.RLock()
	var out []models.Signal
	for _, sig := range s.signals {
		if q.Instrument != "" && sig.Instrument != q.Instrument {
			continue
		}
		out = append(out, sig)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, q.Offset, q.Limit), nil
}

func (s *MemoryStore) LatestSignal(ctx context.Context, instrument string) (models.Signal, error) {
	out, _ := s.ListSignals(ctx, domrepo.SignalQuery{Instrument: instrument, Limit: 1})
	if len(out) == 0 {
		return models.Signal{}, domrepo.ErrNotFound
	}
	return out[0], nil
}

// --- job health ---

func (s *MemoryStore) RecordJobRun(_ context.Context, h models.JobHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[h.JobName] = h
	return nil
}

func (s *MemoryStore) ListJobHealth(context.Context) ([]models.JobHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.JobHealth, 0, len(s.health))
	for _, h := range s.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })
	return out, nil
}

func page[T any](in []T, offset, limit int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return append([]T(nil), in...)
}

func containsString(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

var _ domrepo.Storage = (*MemoryStore)(nil)
