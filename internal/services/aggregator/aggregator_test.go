package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
	"ForexPulse/internal/domain/repository"
	internalrepo "ForexPulse/internal/repository"
	"ForexPulse/pkg/metrics"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func minute(i int, o, h, l, c, v float64) models.Bar {
	return models.Bar{
		Instrument: "EURUSD",
		Timeframe:  "1m",
		Timestamp:  t0.Add(time.Duration(i) * time.Minute),
		Open:       o, High: h, Low: l, Close: c, Volume: v,
	}
}

func TestAggregateFiveMinute(t *testing.T) {
	bars := []models.Bar{
		minute(0, 1.0, 1.2, 0.9, 1.1, 10),
		minute(1, 1.1, 1.5, 1.0, 1.4, 5),
		minute(4, 1.4, 1.4, 0.8, 0.9, 1),
		minute(5, 0.9, 1.0, 0.7, 0.95, 2),
	}

	out := Aggregate(bars, repository.TF5m)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, "5m", first.Timeframe)
	assert.Equal(t, 1.0, first.Open)
	assert.Equal(t, 1.5, first.High)
	assert.Equal(t, 0.8, first.Low)
	assert.Equal(t, 0.9, first.Close)
	assert.Equal(t, 16.0, first.Volume)

	assert.Equal(t, t0.Add(5*time.Minute), out[1].Timestamp)
	assert.Equal(t, 2.0, out[1].Volume)
}

func TestAggregateSortsInputAndSkipsEmptyBuckets(t *testing.T) {
	bars := []models.Bar{
		minute(125, 3, 3, 3, 3, 1),
		minute(1, 2, 2, 2, 2, 1),
		minute(0, 1, 1, 1, 1, 1),
	}

	out := Aggregate(bars, repository.TF1h)
	require.Len(t, out, 2)
	assert.Equal(t, t0, out[0].Timestamp)
	assert.Equal(t, 1.0, out[0].Open)
	assert.Equal(t, 2.0, out[0].Close)
	// hour 1 has no bars
	assert.Equal(t, t0.Add(2*time.Hour), out[1].Timestamp)
	// input is left in caller order
	assert.Equal(t, t0.Add(125*time.Minute), bars[0].Timestamp)
}

func TestAggregateDailyAlignsToUTCMidnight(t *testing.T) {
	late := minute(0, 1, 1, 1, 1, 1)
	late.Timestamp = time.Date(2024, 3, 4, 23, 59, 0, 0, time.UTC)
	next := minute(0, 2, 2, 2, 2, 1)
	next.Timestamp = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	out := Aggregate([]models.Bar{late, next}, repository.TF1d)
	require.Len(t, out, 2)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), out[0].Timestamp)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), out[1].Timestamp)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Nil(t, Aggregate(nil, repository.TF5m))
	assert.Nil(t, Aggregate([]models.Bar{minute(0, 1, 1, 1, 1, 1)}, repository.Timeframe("2h")))
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewMemoryStore()
	for i := 0; i < 130; i++ {
		require.NoError(t, store.InsertBar(ctx, minute(i, 1, 2, 0.5, 1.5, 1)))
	}
	agg := New(store, metrics.Nop{})

	res, err := agg.Run(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 26, res.Inserted[repository.TF5m])
	assert.Equal(t, 3, res.Inserted[repository.TF1h])
	assert.Equal(t, 1, res.Inserted[repository.TF1d])

	res, err = agg.Run(ctx, "EURUSD")
	require.NoError(t, err)
	assert.Zero(t, res.Inserted[repository.TF5m])
	assert.Equal(t, 26, res.Skipped[repository.TF5m])

	hours, err := store.GetBars(ctx, "EURUSD", time.Time{}, time.Time{}, repository.TF1h)
	require.NoError(t, err)
	require.Len(t, hours, 3)
	assert.Equal(t, 60.0, hours[0].Volume)
	assert.Equal(t, 10.0, hours[2].Volume)
}

func TestRunWithTargetsAndNoBars(t *testing.T) {
	store := internalrepo.NewMemoryStore()
	agg := New(store, metrics.Nop{}, WithTargets(repository.TF5m))

	res, err := agg.Run(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
}

type failingWriter struct {
	bars []models.Bar
}

func (f failingWriter) GetBars(context.Context, string, time.Time, time.Time, repository.Timeframe) ([]models.Bar, error) {
	return f.bars, nil
}

func (failingWriter) InsertBar(context.Context, models.Bar) error {
	return errors.New("disk full")
}

func TestRunPropagatesStoreErrors(t *testing.T) {
	agg := New(failingWriter{bars: []models.Bar{minute(0, 1, 1, 1, 1, 1)}}, metrics.Nop{})
	_, err := agg.Run(context.Background(), "EURUSD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
