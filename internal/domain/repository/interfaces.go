package repository

import (
	"context"
	"errors"
	"time"

	"ForexPulse/internal/domain/models"
)

var (
	// ErrAlreadyExists reports an identity-key conflict. Callers treat it as "already present".
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
)

// Upsert outcomes reported to metrics.
const (
	OutcomeInserted = "inserted"
	OutcomeSkipped  = "skipped"
	OutcomeUpdated  = "updated"
)

type BarQuery struct {
	Instrument string
	Timeframe  Timeframe
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type NewsQuery struct {
	Asset  string
	Impact string
	Limit  int
	Offset int
}

type MacroQuery struct {
	From     time.Time
	To       time.Time
	Currency string
	Limit    int
}

type SignalQuery struct {
	Instrument string
	Limit      int
	Offset     int
}

type BarStore interface {
	BarReader
	// InsertBar returns ErrAlreadyExists when the identity key is taken; the stored bar is left untouched.
	InsertBar(ctx context.Context, b models.Bar) error
	LatestBarTime(ctx context.Context, instrument string, tf Timeframe) (time.Time, bool, error)
	// ListBars returns the newest page of bars, ascending.
	ListBars(ctx context.Context, q BarQuery) ([]models.Bar, error)
}

type NewsStore interface {
	// UpsertNews inserts a new item or, on a URL conflict, refreshes title, summary and analysis.
	UpsertNews(ctx context.Context, item models.NewsItem) (inserted bool, err error)
	ListNews(ctx context.Context, q NewsQuery) ([]models.NewsItem, error)
	// NewsInsertedSince returns items stored after since, ascending by insertion time.
	NewsInsertedSince(ctx context.Context, since time.Time, limit int) ([]models.NewsItem, error)
	LatestNewsTime(ctx context.Context) (time.Time, bool, error)
	NewsPublishedBetween(ctx context.Context, from, to time.Time) ([]models.NewsItem, error)
}

type MacroStore interface {
	InsertMacroEvent(ctx context.Context, e models.MacroEvent) error
	ListMacroEvents(ctx context.Context, q MacroQuery) ([]models.MacroEvent, error)
	MacroEventsBetween(ctx context.Context, from, to time.Time) ([]models.MacroEvent, error)
}

type SignalStore interface {
	InsertSignal(ctx context.Context, s models.Signal) error
	ListSignals(ctx context.Context, q SignalQuery) ([]models.Signal, error)
	LatestSignal(ctx context.Context, instrument string) (models.Signal, error)
}

type HealthStore interface {
	RecordJobRun(ctx context.Context, h models.JobHealth) error
	ListJobHealth(ctx context.Context) ([]models.JobHealth, error)
}

// Storage is the full persisted-store contract.
type Storage interface {
	BarStore
	NewsStore
	MacroStore
	SignalStore
	HealthStore
	Init(ctx context.Context) error // ensure tables
	Health(ctx context.Context) error
	Close() error
}

// PriceProvider fetches 1m bars. A zero since means full backfill; otherwise only bars strictly after since are returned.
type PriceProvider interface {
	Name() string
	Fetch(ctx context.Context, instrument string, since time.Time) ([]models.Bar, error)
}

// NewsProvider fetches raw news items (analysis fields empty) strictly after since.
type NewsProvider interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]models.NewsItem, error)
}

// MacroProvider fetches macro calendar events strictly after since.
type MacroProvider interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]models.MacroEvent, error)
}

// EventPublisher fans domain events out to downstream consumers.
type EventPublisher interface {
	PublishNews(ctx context.Context, item models.NewsItem) error
	PublishSignal(ctx context.Context, s models.Signal) error
	Close() error
}

type Metrics interface {
	RecordJobRun(job, status string, seconds float64)
	RecordJobSkipped(job string)
	RecordUpsert(entity, outcome string)
	RecordSignal(instrument, label string, confidence float64)
	RecordProviderRetry(provider string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
