package model

import (
	"math"
)

// LogReg is a multinomial logistic regression over standardized inputs.
type LogReg struct {
	W [][]float64 `json:"w"` // classes x features
	B []float64   `json:"b"`
}

// FitOptions controls gradient descent.
type FitOptions struct {
	Iterations   int
	LearningRate float64
	C            float64 // inverse L2 strength
}

// DefaultFitOptions uses C=1.
func DefaultFitOptions() FitOptions {
	return FitOptions{Iterations: 500, LearningRate: 0.5, C: 1.0}
}

// FitLogReg fits k-class softmax regression by full-batch gradient descent.
// y holds class indices in [0, k).
func FitLogReg(x [][]float64, y []int, k int, opt FitOptions) *LogReg {
	n := len(x)
	d := 0
	if n > 0 {
		d = len(x[0])
	}
	m := &LogReg{W: make([][]float64, k), B: make([]float64, k)}
	for c := range m.W {
		m.W[c] = make([]float64, d)
	}
	if n == 0 {
		return m
	}

	gw := make([][]float64, k)
	for c := range gw {
		gw[c] = make([]float64, d)
	}
	gb := make([]float64, k)
	probs := make([]float64, k)
	inv := 1.0 / float64(n)
	// Objective is mean log loss plus ||W||^2 / (2 C n).
	lambda := inv / opt.C

	for it := 0; it < opt.Iterations; it++ {
		for c := 0; c < k; c++ {
			for j := range gw[c] {
				gw[c][j] = 0
			}
			gb[c] = 0
		}
		for i, row := range x {
			m.softmaxInto(row, probs)
			for c := 0; c < k; c++ {
				g := probs[c]
				if y[i] == c {
					g--
				}
				for j, v := range row {
					gw[c][j] += g * v
				}
				gb[c] += g
			}
		}
		for c := 0; c < k; c++ {
			for j := range m.W[c] {
				m.W[c][j] -= opt.LearningRate * (gw[c][j]*inv + lambda*m.W[c][j])
			}
			m.B[c] -= opt.LearningRate * gb[c] * inv
		}
	}
	return m
}

// Decision returns the raw class scores for x.
func (m *LogReg) Decision(x []float64) []float64 {
	out := make([]float64, len(m.W))
	for c, w := range m.W {
		s := m.B[c]
		for j, v := range x {
			s += w[j] * v
		}
		out[c] = s
	}
	return out
}

// Proba returns softmax probabilities for x.
func (m *LogReg) Proba(x []float64) []float64 {
	out := make([]float64, len(m.W))
	m.softmaxInto(x, out)
	return out
}

func (m *LogReg) softmaxInto(x []float64, out []float64) {
	z := m.Decision(x)
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	sum := 0.0
	for c, v := range z {
		out[c] = math.Exp(v - maxZ)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

// Scaler standardizes columns to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func FitScaler(x [][]float64) Scaler {
	if len(x) == 0 {
		return Scaler{}
	}
	d := len(x[0])
	s := Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	n := float64(len(x))
	for _, row := range x {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			dv := v - s.Mean[j]
			s.Std[j] += dv * dv
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s
}

func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

func (s Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
