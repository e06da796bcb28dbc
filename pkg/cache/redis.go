package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption adjusts the client options before connecting.
type RedisOption func(*redis.Options)

func WithRedisAuth(password string, db int) RedisOption {
	return func(o *redis.Options) {
		o.Password = password
		o.DB = db
	}
}

func WithRedisPool(size, minIdle int) RedisOption {
	return func(o *redis.Options) {
		o.PoolSize = size
		o.MinIdleConns = minIdle
	}
}

// RedisCache implements Service on Redis. Every key is namespaced under prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to addr and pings it once.
func NewRedisCache(addr, prefix string, opts ...RedisOption) (*RedisCache, error) {
	o := &redis.Options{Addr: addr, PoolSize: 10, MinIdleConns: 2, PoolTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(o)
	}
	client := redis.NewClient(o)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisCacheWithClient(client, prefix), nil
}

func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return unmarshal(data, dest)
}

// TryLock stores the acquisition time as the lock value.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Extend resets the TTL of a held lock. It reports false when the key is gone.
func (c *RedisCache) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.PExpire(ctx, c.key(key), ttl).Result()
}

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}
