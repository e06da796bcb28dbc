package cache

import (
	"context"
	"time"
)

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredCache)

// WithLocalSize bounds the in-process layer.
func WithLocalSize(n int) LayeredOption {
	return func(lc *LayeredCache) { lc.local = NewMemoryCache(WithMemoryMaxSize(n)) }
}

// WithLocalTTL caps how long an entry promoted from Redis lives locally.
func WithLocalTTL(d time.Duration) LayeredOption {
	return func(lc *LayeredCache) { lc.localTTL = d }
}

// LayeredCache reads through a process-local MemoryCache in front of Redis and
// writes through to both. Locks are held in Redis only.
type LayeredCache struct {
	local    *MemoryCache
	remote   *RedisCache
	localTTL time.Duration
}

func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	lc := &LayeredCache{local: NewMemoryCache(), remote: remote, localTTL: time.Minute}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, value, lc.capTTL(ttl))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if lc.local.Get(ctx, key, dest) == nil {
		return nil
	}
	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	_ = lc.local.Set(ctx, key, dest, lc.localTTL)
	return nil
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error { return lc.remote.Close() }

func (lc *LayeredCache) capTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > lc.localTTL {
		return lc.localTTL
	}
	return ttl
}
