package ratelimit

import (
	"context"
	"sync"
	"time"
)

type slot struct {
	running bool
	last    time.Time
}

// Limiter is an in-process per-key guard: one holder at a time, and a new
// acquisition only once minInterval has passed since the previous one started.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*slot
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*slot), now: time.Now} }

// WithClock overrides the clock, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Acquire reports whether key was taken. The returned release must be called when the holder finishes.
func (l *Limiter) Acquire(_ context.Context, key string, minInterval time.Duration) (func(), bool, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.m[key]
	if !ok {
		s = &slot{}
		l.m[key] = s
	}
	if s.running {
		return nil, false, nil
	}
	if !s.last.IsZero() && now.Sub(s.last) < minInterval {
		return nil, false, nil
	}
	s.running = true
	s.last = now
	return func() {
		l.mu.Lock()
		s.running = false
		l.mu.Unlock()
	}, true, nil
}
