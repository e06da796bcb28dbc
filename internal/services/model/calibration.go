package model

import (
	"errors"
	"math"
)

// Platt maps a raw score f to a probability sigmoid(A*f + B).
type Platt struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

func (p Platt) Prob(f float64) float64 {
	return sigmoid(p.A*f + p.B)
}

// FitPlatt fits sigmoid calibration for binary targets with Platt's smoothed
// labels, using damped Newton steps.
func FitPlatt(scores []float64, positive []bool) Platt {
	var nPos, nNeg float64
	for _, p := range positive {
		if p {
			nPos++
		} else {
			nNeg++
		}
	}
	hi := (nPos + 1) / (nPos + 2)
	lo := 1 / (nNeg + 2)
	t := make([]float64, len(scores))
	for i, p := range positive {
		if p {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	a, b := 0.0, math.Log((nPos+1)/(nNeg+1))
	loss := plattLoss(scores, t, a, b)
	for it := 0; it < 100; it++ {
		var ga, gb, haa, hab, hbb float64
		for i, f := range scores {
			p := sigmoid(a*f + b)
			d := p - t[i]
			w := p * (1 - p)
			ga += d * f
			gb += d
			haa += w * f * f
			hab += w * f
			hbb += w
		}
		haa += 1e-12
		hbb += 1e-12
		det := haa*hbb - hab*hab
		if det <= 0 {
			break
		}
		da := (hbb*ga - hab*gb) / det
		db := (haa*gb - hab*ga) / det

		step := 1.0
		improved := false
		for k := 0; k < 20; k++ {
			na, nb := a-step*da, b-step*db
			if nl := plattLoss(scores, t, na, nb); nl < loss {
				a, b, loss = na, nb, nl
				improved = true
				break
			}
			step /= 2
		}
		if !improved || math.Abs(step*da)+math.Abs(step*db) < 1e-10 {
			break
		}
	}
	return Platt{A: a, B: b}
}

func plattLoss(scores, t []float64, a, b float64) float64 {
	l := 0.0
	for i, f := range scores {
		z := a*f + b
		// log(1+exp(z)) - t*z, stable for large |z|
		if z > 0 {
			l += z + math.Log1p(math.Exp(-z)) - t[i]*z
		} else {
			l += math.Log1p(math.Exp(z)) - t[i]*z
		}
	}
	return l
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// CalibratedFold is one base model with a one-vs-rest sigmoid per class.
type CalibratedFold struct {
	Base        *LogReg `json:"base"`
	Calibrators []Platt `json:"calibrators"`
}

// Proba returns normalized calibrated probabilities.
func (f CalibratedFold) Proba(x []float64) []float64 {
	scores := f.Base.Decision(x)
	out := make([]float64, len(scores))
	sum := 0.0
	for c, s := range scores {
		out[c] = f.Calibrators[c].Prob(s)
		sum += out[c]
	}
	if sum == 0 {
		for c := range out {
			out[c] = 1 / float64(len(out))
		}
		return out
	}
	for c := range out {
		out[c] /= sum
	}
	return out
}

// ErrTooFewSamples is returned when a fold would be empty.
var ErrTooFewSamples = errors.New("too few samples for cross-validated calibration")

// FitCalibrated trains one base model per fold on the other folds and
// calibrates it on its held-out fold. Folds are contiguous blocks of rows.
func FitCalibrated(x [][]float64, y []int, k, folds int, opt FitOptions) ([]CalibratedFold, error) {
	n := len(x)
	if folds < 2 || n < folds*2 {
		return nil, ErrTooFewSamples
	}
	out := make([]CalibratedFold, 0, folds)
	for f := 0; f < folds; f++ {
		lo := f * n / folds
		hi := (f + 1) * n / folds

		trainX := make([][]float64, 0, n-(hi-lo))
		trainY := make([]int, 0, n-(hi-lo))
		trainX = append(trainX, x[:lo]...)
		trainX = append(trainX, x[hi:]...)
		trainY = append(trainY, y[:lo]...)
		trainY = append(trainY, y[hi:]...)

		base := FitLogReg(trainX, trainY, k, opt)

		scores := make([][]float64, k)
		for c := range scores {
			scores[c] = make([]float64, 0, hi-lo)
		}
		for i := lo; i < hi; i++ {
			d := base.Decision(x[i])
			for c := range d {
				scores[c] = append(scores[c], d[c])
			}
		}
		cals := make([]Platt, k)
		for c := 0; c < k; c++ {
			pos := make([]bool, hi-lo)
			for i := lo; i < hi; i++ {
				pos[i-lo] = y[i] == c
			}
			cals[c] = FitPlatt(scores[c], pos)
		}
		out = append(out, CalibratedFold{Base: base, Calibrators: cals})
	}
	return out, nil
}
