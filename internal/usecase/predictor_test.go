package usecase

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/repository"
	"ForexPulse/internal/services/analytics"
	"ForexPulse/internal/services/model"
	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/metrics"
)

type modelFixture struct {
	store     *repository.MemoryStore
	artifacts *model.FileStore
	pub       *recordingPublisher
	trainer   *TrainerUseCase
	predictor *PredictorUseCase
	now       time.Time
}

func newModelFixture(t *testing.T, bars []models.Bar) *modelFixture {
	t.Helper()
	ctx := context.Background()
	f := &modelFixture{
		store: repository.NewMemoryStore(),
		pub:   &recordingPublisher{},
		now:   t0.Add(48 * time.Hour),
	}
	f.artifacts = model.NewFileStore(t.TempDir(), model.WithClock(func() time.Time { return f.now }))
	for _, b := range bars {
		require.NoError(t, f.store.InsertBar(ctx, b))
	}
	f.trainer = NewTrainerUseCase(f.store, f.store, f.artifacts, metrics.Nop{}, logger.Nop(), model.DefaultTrainConfig(10), 0)
	f.predictor = NewPredictorUseCase(PredictorDeps{
		Bars:       f.store,
		Context:    f.store,
		Signals:    f.store,
		Artifacts:  f.artifacts,
		Classifier: analytics.NewRegimeClassifier(),
		Publisher:  f.pub,
		Metrics:    metrics.Nop{},
		Logger:     logger.Nop(),
		Config:     PredictorConfig{MinBars: 250, NeutralThreshold: 0.45, AlertThreshold: 0.65},
		Now:        func() time.Time { return f.now },
	})
	return f
}

func TestTrainNoData(t *testing.T) {
	f := newModelFixture(t, nil)
	res, err := f.trainer.Train(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, TrainStatusNoData, res.Status)
}

func TestTrainInsufficientRows(t *testing.T) {
	f := newModelFixture(t, minuteBars("XAUUSD", 65, 3))
	res, err := f.trainer.Train(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, TrainStatusInsufficientData, res.Status)

	_, err = f.artifacts.Latest("XAUUSD")
	assert.ErrorIs(t, err, model.ErrNoModel)
}

func TestTrainStoresVersionedArtifact(t *testing.T) {
	f := newModelFixture(t, minuteBars("XAUUSD", 600, 7))

	first, err := f.trainer.Train(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, TrainStatusTrained, first.Status)
	require.NotNil(t, first.Metrics)
	assert.Greater(t, first.Metrics.TrainSize, first.Metrics.TestSize)

	second, err := f.trainer.Train(context.Background(), "XAUUSD")
	require.NoError(t, err)
	v1, ok1 := model.ParseVersion(first.Version)
	v2, ok2 := model.ParseVersion(second.Version)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.True(t, v1.Less(v2))

	a, err := f.artifacts.Latest("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, second.Version, a.Version)
	assert.Equal(t, models.FeatureColumns, a.Features)
}

func TestPredictInsufficientData(t *testing.T) {
	f := newModelFixture(t, minuteBars("XAUUSD", 249, 1))
	res, err := f.predictor.Predict(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, PredictStatusInsufficientData, res.Status)
	assert.Nil(t, res.Signal)

	sigs, err := f.store.ListSignals(context.Background(), domrepo.SignalQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestPredictNoModel(t *testing.T) {
	f := newModelFixture(t, minuteBars("XAUUSD", 300, 1))
	res, err := f.predictor.Predict(context.Background(), "XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, PredictStatusNoModel, res.Status)
	assert.Empty(t, f.pub.signals)
}

func TestPredictProducesOneExplainedSignal(t *testing.T) {
	ctx := context.Background()
	bars := minuteBars("XAUUSD", 600, 11)
	f := newModelFixture(t, bars)
	last := bars[len(bars)-1].Timestamp
	for i := 0; i < 7; i++ {
		_, err := f.store.UpsertNews(ctx, models.NewsItem{
			URL:         fmt.Sprintf("https://example.com/%d", i),
			PublishedAt: last.Add(-time.Duration(i) * time.Hour),
			Title:       fmt.Sprintf("headline %d", i),
			Analysis:    models.NewsAnalysis{SentimentScore: 0.4, SentimentLabel: models.SentimentBullish},
		})
		require.NoError(t, err)
	}
	require.NoError(t, f.store.InsertMacroEvent(ctx, models.MacroEvent{
		Time: last.Add(90 * time.Minute), Currency: "USD", Impact: "high", Name: "NFP", Source: "demo",
	}))

	trained, err := f.trainer.Train(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, TrainStatusTrained, trained.Status)

	res, err := f.predictor.Predict(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, PredictStatusOK, res.Status)
	sig := res.Signal
	require.NotNil(t, sig)

	assert.Equal(t, f.now, sig.Timestamp)
	assert.Equal(t, trained.Version, sig.ModelVersion)
	assert.Contains(t, models.ClassOrder, sig.Label)

	probs := sig.Explanation.Probabilities
	sum, max := 0.0, 0.0
	for _, c := range models.ClassOrder {
		p, ok := probs[c]
		require.True(t, ok, c)
		sum += p
		max = math.Max(max, p)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, max, sig.Confidence)
	assert.Equal(t, analytics.Label(probs, 0.45), sig.Label)

	ex := sig.Explanation
	assert.Len(t, ex.TopFeatures, 5)
	assert.Len(t, ex.RecentNews, 5)
	assert.Equal(t, "headline 0", ex.RecentNews[0].Title)
	assert.InDelta(t, 0.4, ex.SentimentScore, 1e-9)
	assert.InDelta(t, 90, ex.MacroRiskMinutes, 1e-9)
	assert.Equal(t, models.Disclaimer, ex.Disclaimer)
	assert.NotEmpty(t, ex.ConfidenceReason)
	assert.NotEqual(t, models.RegimeUnknown, ex.Regime.Regime)

	sigs, err := f.store.ListSignals(ctx, domrepo.SignalQuery{Instrument: "XAUUSD", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
	assert.Len(t, f.pub.signals, 1)
}

func TestPredictRejectsColumnMismatch(t *testing.T) {
	ctx := context.Background()
	f := newModelFixture(t, minuteBars("XAUUSD", 600, 5))
	_, err := f.trainer.Train(ctx, "XAUUSD")
	require.NoError(t, err)

	a, err := f.artifacts.Latest("XAUUSD")
	require.NoError(t, err)
	a.Features[0], a.Features[1] = a.Features[1], a.Features[0]
	f.now = f.now.Add(time.Minute)
	_, err = f.artifacts.Save("XAUUSD", a)
	require.NoError(t, err)

	_, err = f.predictor.Predict(ctx, "XAUUSD")
	assert.ErrorIs(t, err, model.ErrColumnMismatch)
}

// choppyBars alternates the close around 100 with a per-minute amplitude, so
// volatility_20 is set by amp and nothing else.
func choppyBars(start time.Time, amps []float64) []models.Bar {
	out := make([]models.Bar, len(amps))
	prev := 100.0
	for i, a := range amps {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		c := 100 * (1 + sign*a)
		out[i] = models.Bar{
			Instrument: "XAUUSD",
			Timeframe:  "1m",
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
			Open:       prev,
			High:       math.Max(prev, c) * 1.0001,
			Low:        math.Min(prev, c) * 0.9999,
			Close:      c,
			Volume:     10,
		}
		prev = c
	}
	return out
}

func TestPredictRegimeRanksAgainstFullHistory(t *testing.T) {
	ctx := context.Background()

	// wild first 600 minutes, a calm stretch, then a moderately active last half hour
	amps := make([]float64, 900)
	for i := range amps {
		switch {
		case i < 600:
			amps[i] = 0.03
		case i < 870:
			amps[i] = 0.0001
		default:
			amps[i] = 0.002
		}
	}
	bars := choppyBars(t0, amps)
	f := newModelFixture(t, bars)

	src := newModelFixture(t, minuteBars("XAUUSD", 600, 7))
	trained, err := src.trainer.Train(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, TrainStatusTrained, trained.Status)
	a, err := src.artifacts.Latest("XAUUSD")
	require.NoError(t, err)
	_, err = f.artifacts.Save("XAUUSD", a)
	require.NoError(t, err)

	res, err := f.predictor.Predict(ctx, "XAUUSD")
	require.NoError(t, err)
	require.Equal(t, PredictStatusOK, res.Status)

	classifier := analytics.NewRegimeClassifier()
	full, _, err := featureTable(ctx, f.store, bars)
	require.NoError(t, err)
	want := classifier.Classify(full)
	got := res.Signal.Explanation.Regime

	assert.Equal(t, want.Regime, got.Regime)
	require.NotNil(t, got.Evidence)
	assert.InDelta(t, want.Evidence.VolPercentile, got.Evidence.VolPercentile, 1e-12)
	assert.NotEqual(t, models.RegimeVolatile, got.Regime)

	// the last 300 minutes alone would call the same bar volatile
	tail, _, err := featureTable(ctx, f.store, bars[len(bars)-300:])
	require.NoError(t, err)
	assert.Equal(t, models.RegimeVolatile, classifier.Classify(tail).Regime)
}

func TestPredictDuplicateInstantPublishesOnce(t *testing.T) {
	ctx := context.Background()
	f := newModelFixture(t, minuteBars("XAUUSD", 600, 3))
	_, err := f.trainer.Train(ctx, "XAUUSD")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := f.predictor.Predict(ctx, "XAUUSD")
		require.NoError(t, err)
		assert.Equal(t, PredictStatusOK, res.Status)
	}

	sigs, err := f.store.ListSignals(ctx, domrepo.SignalQuery{Instrument: "XAUUSD", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, sigs, 1)
	assert.Len(t, f.pub.signals, 1)
}
