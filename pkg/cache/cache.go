package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is a JSON value cache with expiring exclusive keys.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	// TryLock sets key only if absent, expiring after ttl. It reports whether the lock was taken.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// GetOrCompute returns the cached value at key, or computes, stores and returns it.
// Cache failures fall through to compute; a failed write is ignored.
func GetOrCompute[T any](ctx context.Context, c Service, key string, ttl time.Duration, compute func() T) T {
	if c == nil {
		return compute()
	}
	var v T
	if err := c.Get(ctx, key, &v); err == nil {
		return v
	}
	v = compute()
	_ = c.Set(ctx, key, v, ttl)
	return v
}

// Key joins parts with ':'.
func Key(parts ...string) string { return strings.Join(parts, ":") }

// ContentHash fingerprints text fields; parts are separated so ("ab","") and ("a","b") differ.
func ContentHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

func marshal(value interface{}) ([]byte, error) { return json.Marshal(value) }

func unmarshal(data []byte, dest interface{}) error { return json.Unmarshal(data, dest) }
