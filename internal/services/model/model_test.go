package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/internal/domain/models"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// waveRows builds a table whose first feature tracks the forward move over
// the horizon, so a linear model can learn the direction.
func waveRows(n, horizon int) []models.FeatureRow {
	rows := make([]models.FeatureRow, n)
	for i := range rows {
		lead := math.Cos(float64(i+horizon/2) / 7)
		rows[i] = models.FeatureRow{
			Timestamp:  t0.Add(time.Duration(i) * time.Minute),
			Close:      100 + 5*math.Sin(float64(i)/7),
			LogReturn1: lead,
			RSI14:      50 + 10*math.Cos(float64(i)/3),
		}
	}
	return rows
}

func TestLabelRows(t *testing.T) {
	rows := []models.FeatureRow{{Close: 100}, {Close: 101}, {Close: 99}, {Close: 100}, {Close: 100}}
	ds, err := LabelRows(rows, 1, []string{models.ColRSI14})
	require.NoError(t, err)

	// forward returns: +1%, -1.98%, +1.01%, 0
	require.Len(t, ds.Y, 4)
	assert.Greater(t, ds.Threshold, 0.0)
	assert.Equal(t, []int{
		classIndex(models.LabelBullish),
		classIndex(models.LabelBearish),
		classIndex(models.LabelBullish),
		classIndex(models.LabelNeutral),
	}, ds.Y)

	_, err = LabelRows(rows[:2], 1, []string{models.ColRSI14})
	assert.ErrorIs(t, err, ErrInsufficientTrainingData)
	_, err = LabelRows(rows, 0, nil)
	assert.Error(t, err)
	_, err = LabelRows(rows, 1, []string{"bogus"})
	assert.Error(t, err)
}

func TestSplitKeepsTimeOrder(t *testing.T) {
	ds := Dataset{X: [][]float64{{1}, {2}, {3}, {4}, {5}}, Y: []int{0, 1, 2, 0, 1}}
	train, test := ds.Split(0.8)
	assert.Equal(t, [][]float64{{1}, {2}, {3}, {4}}, train.X)
	assert.Equal(t, [][]float64{{5}}, test.X)
}

func TestScaler(t *testing.T) {
	s := FitScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, s.Mean)
	// a constant column keeps unit scale
	assert.Equal(t, []float64{1, 1}, s.Std)
	assert.Equal(t, []float64{-1, 0}, s.Transform([]float64{1, 5}))
}

func TestFitLogRegSeparable(t *testing.T) {
	x := [][]float64{{-2}, {-1.5}, {-1}, {1}, {1.5}, {2}}
	y := []int{0, 0, 0, 1, 1, 1}
	m := FitLogReg(x, y, 2, DefaultFitOptions())

	assert.Greater(t, m.Proba([]float64{-2})[0], 0.8)
	assert.Greater(t, m.Proba([]float64{2})[1], 0.8)
	p := m.Proba([]float64{0.3})
	assert.InDelta(t, 1.0, p[0]+p[1], 1e-12)
}

func TestFitPlattMonotone(t *testing.T) {
	scores := []float64{-3, -2, -1, -0.5, 0.5, 1, 2, 3}
	pos := []bool{false, false, false, true, false, true, true, true}
	p := FitPlatt(scores, pos)

	assert.Greater(t, p.A, 0.0)
	assert.Less(t, p.Prob(-3), p.Prob(0))
	assert.Less(t, p.Prob(0), p.Prob(3))
}

func TestFitCalibratedTooFew(t *testing.T) {
	_, err := FitCalibrated([][]float64{{1}, {2}, {3}}, []int{0, 1, 2}, 3, 3, DefaultFitOptions())
	assert.ErrorIs(t, err, ErrTooFewSamples)
}

func TestTrainAndPredict(t *testing.T) {
	cols := []string{models.ColLogReturn1, models.ColRSI14}
	a, err := Train(waveRows(400, 10), cols, DefaultTrainConfig(10))
	require.NoError(t, err)

	assert.Equal(t, cols, a.Features)
	assert.Equal(t, models.ClassOrder, a.Classes)
	assert.Len(t, a.Folds, 3)
	assert.Equal(t, 312, a.Metrics.TrainSize)
	assert.Equal(t, 78, a.Metrics.TestSize)
	assert.Greater(t, a.Metrics.TestAccuracy, 0.5)

	total := 0
	for _, c := range a.Metrics.LabelCounts {
		total += c
	}
	assert.Equal(t, 390, total)

	probs, err := a.PredictRow(models.FeatureRow{LogReturn1: 1, RSI14: 50})
	require.NoError(t, err)
	sum := 0.0
	for _, c := range models.ClassOrder {
		assert.GreaterOrEqual(t, probs[c], 0.0)
		sum += probs[c]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[models.LabelBullish], probs[models.LabelBearish])
}

func TestTrainInsufficientData(t *testing.T) {
	_, err := Train(waveRows(12, 10), []string{models.ColRSI14}, DefaultTrainConfig(10))
	assert.ErrorIs(t, err, ErrInsufficientTrainingData)
}

func TestCheckColumns(t *testing.T) {
	a := &Artifact{Features: []string{"a", "b"}, Scaler: Scaler{Mean: []float64{0, 0}, Std: []float64{1, 1}}}
	assert.NoError(t, a.CheckColumns([]string{"a", "b"}))
	assert.ErrorIs(t, a.CheckColumns([]string{"b", "a"}), ErrColumnMismatch)
	assert.ErrorIs(t, a.CheckColumns([]string{"a"}), ErrColumnMismatch)

	_, err := (&Artifact{Features: []string{"bogus"}}).PredictRow(models.FeatureRow{})
	assert.ErrorIs(t, err, ErrColumnMismatch)
}

func TestVersionOrdering(t *testing.T) {
	v, ok := ParseVersion("lr-20240304120000-0002")
	require.True(t, ok)
	assert.Equal(t, "lr-20240304120000-0002", v.String())

	_, ok = ParseVersion("lr-2024-01")
	assert.False(t, ok)

	now := time.Date(2024, 3, 4, 12, 0, 0, 500, time.UTC)
	// same second bumps the sequence
	assert.Equal(t, Version{At: v.At, Seq: 3}, NextVersion(now, &v))
	// a clock behind the latest version still moves forward
	assert.Equal(t, Version{At: v.At, Seq: 3}, NextVersion(now.Add(-time.Hour), &v))
	assert.Equal(t, Version{At: now.Add(time.Minute).Truncate(time.Second), Seq: 1}, NextVersion(now.Add(time.Minute), &v))
	assert.Equal(t, 1, NextVersion(now, nil).Seq)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	s := NewFileStore(dir, WithClock(func() time.Time { return now }))

	_, err := s.Latest("XAUUSD")
	assert.True(t, errors.Is(err, ErrNoModel))

	v1, err := s.Save("XAUUSD", &Artifact{Features: []string{"a"}})
	require.NoError(t, err)
	v2, err := s.Save("XAUUSD", &Artifact{Features: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, "lr-20240304120000-0001", v1)
	assert.Equal(t, "lr-20240304120000-0002", v2)

	_, err = s.Save("EURUSD", &Artifact{Features: []string{"c"}})
	require.NoError(t, err)

	// stray temp files and foreign names are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "XAUUSD", ".tmp-123"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "XAUUSD", "notes.json"), []byte("{}"), 0o644))

	latest, err := s.Latest("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, v2, latest.Version)
	assert.Equal(t, "XAUUSD", latest.Namespace)
	assert.Equal(t, []string{"b"}, latest.Features)
	assert.True(t, now.Equal(latest.CreatedAt))

	versions, err := s.Versions("XAUUSD")
	require.NoError(t, err)
	assert.Equal(t, []string{v1, v2}, versions)

	first, err := s.Load("XAUUSD", v1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Features)

	_, err = s.Load("XAUUSD", "lr-20990101000000-0001")
	assert.ErrorIs(t, err, ErrNoModel)
}
