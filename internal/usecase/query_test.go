package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/repository"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestGetPricesValidatesAndClamps(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	for _, b := range minuteBars("EURUSD", 20, 2) {
		require.NoError(t, store.InsertBar(ctx, b))
	}
	uc := NewQueryUseCase(store, nil, nil)

	_, err := uc.GetPrices(ctx, GetPricesParams{Timeframe: domrepo.TF1m})
	require.Error(t, err)
	_, err = uc.GetPrices(ctx, GetPricesParams{Instrument: "EURUSD", Timeframe: "4h"})
	require.Error(t, err)

	res, err := uc.GetPrices(ctx, GetPricesParams{Instrument: "EURUSD", Timeframe: domrepo.TF1m, Limit: 5})
	require.NoError(t, err)
	require.Equal(t, 5, res.Count)
	assert.Equal(t, t0.Add(15*time.Minute), res.Bars[0].Timestamp)
	assert.Equal(t, t0.Add(19*time.Minute), res.Bars[4].Timestamp)

	res, err = uc.GetPrices(ctx, GetPricesParams{Instrument: "EURUSD", Timeframe: domrepo.TF1h})
	require.NoError(t, err)
	assert.NotNil(t, res.Bars)
	assert.Zero(t, res.Count)
}

func TestListMacroRejectsInvertedRange(t *testing.T) {
	uc := NewQueryUseCase(repository.NewMemoryStore(), nil, nil)
	_, err := uc.ListMacro(context.Background(), domrepo.MacroQuery{From: t0.Add(time.Hour), To: t0})
	require.Error(t, err)
}

func TestLatestSignalNotFound(t *testing.T) {
	uc := NewQueryUseCase(repository.NewMemoryStore(), nil, nil)
	_, err := uc.LatestSignal(context.Background(), "XAUUSD")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}

func TestHealthReportsRedis(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.RecordJobRun(ctx, models.JobHealth{JobName: "prices", LastRun: t0, Status: models.JobStatusSuccess, OK: true}))

	res, err := NewQueryUseCase(store, nil, nil).Health(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Jobs, 1)
	assert.True(t, res.StoreOK)
	assert.False(t, res.RedisOK)

	up := pingFunc(func(context.Context) error { return nil })
	res, err = NewQueryUseCase(store, up, nil).Health(ctx)
	require.NoError(t, err)
	assert.True(t, res.RedisOK)

	down := pingFunc(func(context.Context) error { return errors.New("refused") })
	res, err = NewQueryUseCase(store, down, nil).Health(ctx)
	require.NoError(t, err)
	assert.False(t, res.RedisOK)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 50, clamp(0, 50, 500))
	assert.Equal(t, 50, clamp(-3, 50, 500))
	assert.Equal(t, 500, clamp(9000, 50, 500))
	assert.Equal(t, 7, clamp(7, 50, 500))
}
