package util

import (
	"math/rand"
	"time"
)

// Backoff returns an exponential delay for attempt (1-based), capped at max, with up to 50% jitter removed.
func Backoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt <= 32 {
		if d := min * time.Duration(1<<uint(attempt-1)); d > 0 && d < max {
			exp = d
		}
	}
	if half := int64(exp) / 2; half > 0 {
		return exp - time.Duration(rand.Int63n(half))
	}
	return exp
}

// Sleep waits for d or until done is closed. It reports whether the full delay elapsed.
func Sleep(done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
