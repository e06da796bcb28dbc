package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ForexPulse/internal/domain/models"
	"ForexPulse/internal/domain/repository"
	applogger "ForexPulse/pkg/logger"
)

// Writer is the slice of the bar store the aggregator needs.
type Writer interface {
	GetBars(ctx context.Context, instrument string, from, to time.Time, tf repository.Timeframe) ([]models.Bar, error)
	InsertBar(ctx context.Context, b models.Bar) error
}

// Aggregator rolls 1m bars up into the derived timeframes.
// Existing derived bars are never rewritten, so a corrected 1m bar does not
// repair a higher-timeframe bar that was already materialized.
type Aggregator struct {
	store   Writer
	metrics repository.Metrics
	l       *applogger.Logger
	targets []repository.Timeframe
}

// Option configures Aggregator.
type Option func(*Aggregator)

// WithTargets overrides the derived timeframes (default 5m, 1h, 1d).
func WithTargets(tfs ...repository.Timeframe) Option {
	return func(a *Aggregator) { a.targets = tfs }
}

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(a *Aggregator) { a.l = l }
}

func New(store Writer, metrics repository.Metrics, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		metrics: metrics,
		targets: repository.DerivedTimeframes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result counts derived bars per timeframe.
type Result struct {
	Inserted map[repository.Timeframe]int
	Skipped  map[repository.Timeframe]int
}

// Run aggregates the full 1m history of instrument. Safe to re-run.
func (a *Aggregator) Run(ctx context.Context, instrument string) (Result, error) {
	res := Result{
		Inserted: make(map[repository.Timeframe]int, len(a.targets)),
		Skipped:  make(map[repository.Timeframe]int, len(a.targets)),
	}

	minute, err := a.store.GetBars(ctx, instrument, time.Time{}, time.Time{}, repository.TF1m)
	if err != nil {
		return res, fmt.Errorf("aggregate %s: load 1m bars: %w", instrument, err)
	}
	if len(minute) == 0 {
		return res, nil
	}

	for _, tf := range a.targets {
		for _, b := range Aggregate(minute, tf) {
			err := a.store.InsertBar(ctx, b)
			switch {
			case err == nil:
				res.Inserted[tf]++
				a.metrics.RecordUpsert("bar_"+tf.String(), repository.OutcomeInserted)
			case errors.Is(err, repository.ErrAlreadyExists):
				res.Skipped[tf]++
				a.metrics.RecordUpsert("bar_"+tf.String(), repository.OutcomeSkipped)
			default:
				return res, fmt.Errorf("aggregate %s %s at %s: %w", instrument, tf, b.Timestamp.Format(time.RFC3339), err)
			}
		}
		a.l.Debug("aggregated bars",
			applogger.String("instrument", instrument),
			applogger.String("timeframe", tf.String()),
			applogger.Int("inserted", res.Inserted[tf]),
			applogger.Int("skipped", res.Skipped[tf]),
		)
	}
	return res, nil
}

// Aggregate buckets 1m bars into tf bars aligned to UTC calendar boundaries.
// Empty buckets produce no bar. The output is ascending by bucket start.
func Aggregate(bars []models.Bar, tf repository.Timeframe) []models.Bar {
	if len(bars) == 0 || tf.Duration() == 0 {
		return nil
	}
	sorted := bars
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) }) {
		sorted = make([]models.Bar, len(bars))
		copy(sorted, bars)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	}

	var out []models.Bar
	var cur *models.Bar
	for _, b := range sorted {
		bucket := tf.Bucket(b.Timestamp)
		if cur == nil || !cur.Timestamp.Equal(bucket) {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &models.Bar{
				Instrument: b.Instrument,
				Timeframe:  tf.String(),
				Timestamp:  bucket,
				Open:       b.Open,
				High:       b.High,
				Low:        b.Low,
				Close:      b.Close,
				Volume:     b.Volume,
			}
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}
