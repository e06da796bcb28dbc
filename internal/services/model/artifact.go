package model

import (
	"errors"
	"fmt"
	"time"

	"ForexPulse/internal/domain/models"
)

var (
	ErrNoModel        = errors.New("no model artifact")
	ErrColumnMismatch = errors.New("model feature columns do not match pipeline columns")
)

// TrainingMetrics summarises a fit.
type TrainingMetrics struct {
	TrainSize    int            `json:"train_size"`
	TestSize     int            `json:"test_size"`
	TestAccuracy float64        `json:"test_accuracy"`
	LabelCounts  map[string]int `json:"label_counts"`
	Threshold    float64        `json:"threshold"`
}

// Artifact is a fitted, calibrated classifier with the exact feature order it was trained on.
type Artifact struct {
	Version        string           `json:"version"`
	Namespace      string           `json:"namespace"`
	CreatedAt      time.Time        `json:"created_at"`
	HorizonMinutes int              `json:"horizon_minutes"`
	Features       []string         `json:"features"`
	Classes        []string         `json:"classes"`
	Scaler         Scaler           `json:"scaler"`
	Folds          []CalibratedFold `json:"folds"`
	Metrics        TrainingMetrics  `json:"metrics"`
}

// TrainConfig controls Train.
type TrainConfig struct {
	HorizonMinutes int
	TrainFraction  float64
	Folds          int
	Fit            FitOptions
}

func DefaultTrainConfig(horizon int) TrainConfig {
	return TrainConfig{HorizonMinutes: horizon, TrainFraction: 0.8, Folds: 3, Fit: DefaultFitOptions()}
}

// Train labels rows, splits 80/20 in time order, fits the calibrated model on
// the training part and scores accuracy on the rest. Version is left for the store.
func Train(rows []models.FeatureRow, cols []string, cfg TrainConfig) (*Artifact, error) {
	ds, err := LabelRows(rows, cfg.HorizonMinutes, cols)
	if err != nil {
		return nil, err
	}
	train, test := ds.Split(cfg.TrainFraction)

	scaler := FitScaler(train.X)
	folds, err := FitCalibrated(scaler.TransformAll(train.X), train.Y, len(models.ClassOrder), cfg.Folds, cfg.Fit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientTrainingData, err)
	}

	a := &Artifact{
		HorizonMinutes: cfg.HorizonMinutes,
		Features:       append([]string(nil), cols...),
		Classes:        append([]string(nil), models.ClassOrder...),
		Scaler:         scaler,
		Folds:          folds,
	}

	counts := make(map[string]int, len(models.ClassOrder))
	for _, y := range ds.Y {
		counts[models.ClassOrder[y]]++
	}
	correct := 0
	for i, x := range test.X {
		if argmax(a.proba(x)) == test.Y[i] {
			correct++
		}
	}
	acc := 0.0
	if len(test.X) > 0 {
		acc = float64(correct) / float64(len(test.X))
	}
	a.Metrics = TrainingMetrics{
		TrainSize:    len(train.X),
		TestSize:     len(test.X),
		TestAccuracy: acc,
		LabelCounts:  counts,
		Threshold:    ds.Threshold,
	}
	return a, nil
}

// CheckColumns rejects an artifact whose feature list differs from cols in content or order.
func (a *Artifact) CheckColumns(cols []string) error {
	if len(a.Features) != len(cols) {
		return fmt.Errorf("%w: model has %d, pipeline has %d", ErrColumnMismatch, len(a.Features), len(cols))
	}
	for i := range cols {
		if a.Features[i] != cols[i] {
			return fmt.Errorf("%w: position %d is %q, pipeline has %q", ErrColumnMismatch, i, a.Features[i], cols[i])
		}
	}
	if len(a.Scaler.Mean) != len(cols) {
		return fmt.Errorf("%w: scaler width %d", ErrColumnMismatch, len(a.Scaler.Mean))
	}
	return nil
}

// PredictRow returns the calibrated class distribution for row.
func (a *Artifact) PredictRow(row models.FeatureRow) (map[string]float64, error) {
	x, err := row.Vector(a.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrColumnMismatch, err)
	}
	p := a.proba(x)
	out := make(map[string]float64, len(a.Classes))
	for i, c := range a.Classes {
		out[c] = p[i]
	}
	return out, nil
}

// proba averages the calibrated folds.
func (a *Artifact) proba(x []float64) []float64 {
	z := a.Scaler.Transform(x)
	out := make([]float64, len(a.Classes))
	for _, f := range a.Folds {
		for i, p := range f.Proba(z) {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(a.Folds))
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}
