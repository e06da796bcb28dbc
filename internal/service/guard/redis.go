package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ForexPulse/pkg/logger"
)

// KeyPrefix namespaces job leases.
const KeyPrefix = "rate_limit:"

// LeaseStore holds expiring locks.
type LeaseStore interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLease guards jobs across processes with a SetNX lease of TTL minInterval.
// While the holder runs, the lease is pushed forward every third of the TTL, so
// a run longer than minInterval stays exclusive. Release stops the renewal but
// leaves the key to expire, which also spaces consecutive runs.
type RedisLease struct {
	store LeaseStore
	l     *logger.Logger
}

func NewRedisLease(store LeaseStore, l *logger.Logger) *RedisLease {
	return &RedisLease{store: store, l: l}
}

func (g *RedisLease) Acquire(ctx context.Context, job string, minInterval time.Duration) (func(), bool, error) {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	key := KeyPrefix + job
	ok, err := g.store.TryLock(ctx, key, minInterval)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", job, err)
	}
	if !ok {
		return nil, false, nil
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.renew(key, minInterval, done)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}, true, nil
}

func (g *RedisLease) renew(key string, ttl time.Duration, done <-chan struct{}) {
	t := time.NewTicker(ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), ttl/3)
		held, err := g.store.Extend(ctx, key, ttl)
		cancel()
		switch {
		case err != nil:
			g.l.Warn("job lease renewal failed", logger.String("lease", key), logger.Error(err))
		case !held:
			g.l.Warn("job lease lost while running", logger.String("lease", key))
			return
		}
	}
}

// Guard grants exclusive, spaced runs per job name.
type Guard interface {
	Acquire(ctx context.Context, job string, minInterval time.Duration) (release func(), ok bool, err error)
}
