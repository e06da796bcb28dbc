package features

import "math"

// Windowed primitives over float series. Undefined positions are NaN, matching
// the strict lookback contract: any window touching a NaN is itself NaN.

// PctChange returns x[i]/x[i-n] - 1, NaN for i < n or a zero base.
func PctChange(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n || x[i-n] == 0 || math.IsNaN(x[i-n]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-n] - 1
	}
	return out
}

// Log1p applies ln(1+v) element-wise.
func Log1p(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Log1p(v)
	}
	return out
}

// Diff returns x[i] - x[i-1], NaN at 0.
func Diff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] - x[i-1]
	}
	return out
}

// EMA is the recursive exponential average with alpha = 2/(span+1), seeded by
// the first value and without bias adjustment.
func EMA(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RollingMean is the mean over the trailing window; NaN until window values exist.
func RollingMean(x []float64, window int) []float64 {
	return rolling(x, window, (*ring).mean)
}

// RollingStd is the sample (n-1) standard deviation over the trailing window.
func RollingStd(x []float64, window int) []float64 {
	return rolling(x, window, (*ring).std)
}

func rolling(x []float64, window int, agg func(*ring) float64) []float64 {
	out := make([]float64, len(x))
	r := newRing(window)
	for i, v := range x {
		r.push(v)
		if !r.full() || r.nans > 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(r)
	}
	return out
}

// ring is a fixed-size trailing window that tracks how many NaNs it holds.
type ring struct {
	buf  []float64
	pos  int
	n    int
	nans int
}

func newRing(size int) *ring {
	return &ring{buf: make([]float64, size)}
}

func (r *ring) push(v float64) {
	if r.n == len(r.buf) {
		if math.IsNaN(r.buf[r.pos]) {
			r.nans--
		}
	} else {
		r.n++
	}
	if math.IsNaN(v) {
		r.nans++
	}
	r.buf[r.pos] = v
	r.pos = (r.pos + 1) % len(r.buf)
}

func (r *ring) full() bool { return len(r.buf) > 0 && r.n == len(r.buf) }

func (r *ring) mean() float64 {
	s := 0.0
	for _, v := range r.buf {
		s += v
	}
	return s / float64(len(r.buf))
}

func (r *ring) std() float64 {
	if len(r.buf) < 2 {
		return math.NaN()
	}
	m := r.mean()
	ss := 0.0
	for _, v := range r.buf {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(r.buf)-1))
}
