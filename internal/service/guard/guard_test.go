package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForexPulse/pkg/cache"
)

func newLease(t *testing.T) (*RedisLease, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLease(cache.NewRedisCacheWithClient(client, "fx"), nil), mr
}

func TestRedisLeaseExpires(t *testing.T) {
	g, mr := newLease(t)
	ctx := context.Background()

	release, ok, err := g.Acquire(ctx, "news", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()

	_, ok, err = g.Acquire(ctx, "news", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lease outlives release")
	assert.True(t, mr.Exists("fx:rate_limit:news"))

	mr.FastForward(5*time.Minute + time.Second)
	release, ok, err = g.Acquire(ctx, "news", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()
}

func TestRedisLeaseError(t *testing.T) {
	g, mr := newLease(t)
	mr.Close()
	_, ok, err := g.Acquire(context.Background(), "macro", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisLeaseRenewsWhileHeld(t *testing.T) {
	g, mr := newLease(t)
	ctx := context.Background()
	const ttl = 150 * time.Millisecond

	release, ok, err := g.Acquire(ctx, "train", ttl)
	require.NoError(t, err)
	require.True(t, ok)

	// a run outlasting the interval keeps the lease alive
	mr.FastForward(100 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL("fx:rate_limit:train") > 100*time.Millisecond },
		time.Second, 10*time.Millisecond)
	mr.FastForward(100 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL("fx:rate_limit:train") > 100*time.Millisecond },
		time.Second, 10*time.Millisecond)
	_, ok, err = g.Acquire(ctx, "train", ttl)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release()
	mr.FastForward(ttl + time.Millisecond)
	again, ok, err := g.Acquire(ctx, "train", ttl)
	require.NoError(t, err)
	require.True(t, ok)
	again()
}
