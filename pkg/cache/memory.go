package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the entry count; zero means unbounded.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(mc *MemoryCache) { mc.maxSize = n }
}

// WithMemoryClock overrides the expiry clock.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(mc *MemoryCache) { mc.now = now }
}

type memoryItem struct {
	data     []byte
	expireAt time.Time // zero means no expiry
	access   time.Time
}

// MemoryCache implements Service in process. Values are stored JSON-encoded
// so Get behaves the same as on Redis.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string]*memoryItem
	maxSize int
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache with least-recently-used eviction.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	mc := &MemoryCache{data: make(map[string]*memoryItem), maxSize: 1000, now: time.Now}
	for _, opt := range opts {
		opt(mc)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(key, data, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	item, ok := mc.live(key)
	if ok {
		item.access = mc.now()
	}
	mc.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return unmarshal(item.data, dest)
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.live(key); ok {
		return false, nil
	}
	mc.put(key, []byte(`"locked"`), ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.data, key)
	return nil
}

// Len reports the number of live entries.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	n := 0
	for k := range mc.data {
		if _, ok := mc.live(k); ok {
			n++
		}
	}
	return n
}

// live returns the entry at key, dropping it if expired. Caller holds mu.
func (mc *MemoryCache) live(key string) (*memoryItem, bool) {
	item, ok := mc.data[key]
	if !ok {
		return nil, false
	}
	if !item.expireAt.IsZero() && !mc.now().Before(item.expireAt) {
		delete(mc.data, key)
		return nil, false
	}
	return item, true
}

func (mc *MemoryCache) put(key string, data []byte, ttl time.Duration) {
	if _, exists := mc.data[key]; !exists && mc.maxSize > 0 && len(mc.data) >= mc.maxSize {
		mc.evictLRU()
	}
	now := mc.now()
	item := &memoryItem{data: data, access: now}
	if ttl > 0 {
		item.expireAt = now.Add(ttl)
	}
	mc.data[key] = item
}

func (mc *MemoryCache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for k, item := range mc.data {
		if oldestKey == "" || item.access.Before(oldest) {
			oldestKey, oldest = k, item.access
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}
