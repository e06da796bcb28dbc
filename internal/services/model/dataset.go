package model

import (
	"errors"
	"fmt"
	"math"

	"ForexPulse/internal/domain/models"
)

// ErrInsufficientTrainingData is returned when too few labelled rows remain.
var ErrInsufficientTrainingData = errors.New("insufficient training data")

// Dataset is a labelled design matrix in chronological order.
type Dataset struct {
	X         [][]float64
	Y         []int
	Threshold float64
}

// LabelRows labels each row by its forward return over horizon rows:
// Bullish above 0.5*std, Bearish below -0.5*std, else Neutral. The std is the
// sample std of all defined forward returns. Rows without a forward close are dropped.
func LabelRows(rows []models.FeatureRow, horizon int, cols []string) (Dataset, error) {
	if horizon <= 0 {
		return Dataset{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	n := len(rows) - horizon
	if n < 2 {
		return Dataset{}, ErrInsufficientTrainingData
	}

	fwd := make([]float64, 0, n)
	xs := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		base := rows[i].Close
		if base == 0 {
			continue
		}
		r := rows[i+horizon].Close/base - 1
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		v, err := rows[i].Vector(cols)
		if err != nil {
			return Dataset{}, err
		}
		fwd = append(fwd, r)
		xs = append(xs, v)
	}
	if len(fwd) < 2 {
		return Dataset{}, ErrInsufficientTrainingData
	}

	threshold := 0.5 * sampleStd(fwd)
	ys := make([]int, len(fwd))
	for i, r := range fwd {
		ys[i] = classIndex(labelForReturn(r, threshold))
	}
	return Dataset{X: xs, Y: ys, Threshold: threshold}, nil
}

func labelForReturn(r, threshold float64) string {
	switch {
	case r > threshold:
		return models.LabelBullish
	case r < -threshold:
		return models.LabelBearish
	default:
		return models.LabelNeutral
	}
}

func classIndex(label string) int {
	for i, c := range models.ClassOrder {
		if c == label {
			return i
		}
	}
	return -1
}

// Split cuts the dataset chronologically at frac without shuffling.
func (d Dataset) Split(frac float64) (train, test Dataset) {
	cut := int(float64(len(d.X)) * frac)
	train = Dataset{X: d.X[:cut], Y: d.Y[:cut], Threshold: d.Threshold}
	test = Dataset{X: d.X[cut:], Y: d.Y[cut:], Threshold: d.Threshold}
	return train, test
}

func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := 0.0
	for _, v := range xs {
		m += v
	}
	m /= float64(len(xs))
	ss := 0.0
	for _, v := range xs {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
