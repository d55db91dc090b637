package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	srv := miniredis.RunT(t)
	rc := NewRedisCache(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test")
	t.Cleanup(func() { _ = rc.Close() })
	return srv, rc
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, rc := newRedis(t)

	require.NoError(t, rc.Set(ctx, "p", point{Ticker: "SPY", Close: 512.3}, time.Minute))
	assert.True(t, srv.Exists("test:p"))
	assert.Equal(t, time.Minute, srv.TTL("test:p"))

	var got point
	require.NoError(t, rc.Get(ctx, "p", &got))
	assert.Equal(t, "SPY", got.Ticker)
	assert.ErrorIs(t, rc.Get(ctx, "nope", &got), ErrCacheMiss)

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, rc.Get(ctx, "p", &got), ErrCacheMiss)
}

func TestRedisCache_BulkAndPattern(t *testing.T) {
	ctx := context.Background()
	srv, rc := newRedis(t)

	require.NoError(t, rc.MSet(ctx, map[string]interface{}{
		"series:1y:1d:SPY": point{Ticker: "SPY"},
		"series:1y:1d:QQQ": point{Ticker: "QQQ"},
		"scan:latest":      "r",
	}, time.Minute))

	got, err := GetMany[point](ctx, rc, "series:1y:1d:SPY", "series:1y:1d:QQQ", "series:1y:1d:IWM")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, rc.DeleteByPattern(ctx, Prefixed("series")))
	assert.False(t, srv.Exists("test:series:1y:1d:SPY"))
	assert.True(t, srv.Exists("test:scan:latest"))

	require.NoError(t, rc.Delete(ctx, "scan:latest"))
	assert.False(t, srv.Exists("test:scan:latest"))
	require.NoError(t, rc.Delete(ctx))
}

func TestLayeredCache(t *testing.T) {
	ctx := context.Background()
	srv, rc := newRedis(t)
	lc := NewLayeredCache(rc, WithLayeredMemorySize(10), WithLayeredMemoryTTL(time.Minute))
	defer lc.l1.Close()

	require.NoError(t, lc.Set(ctx, "k", point{Ticker: "SPY"}, time.Hour))
	assert.True(t, srv.Exists("test:k"))

	// served from L1 after the remote copy is gone
	srv.Del("test:k")
	var got point
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "SPY", got.Ticker)

	// remote-only values are pulled into L1
	require.NoError(t, rc.Set(ctx, "r", point{Ticker: "QQQ"}, time.Hour))
	m, err := lc.MGet(ctx, "k", "r", "none")
	require.NoError(t, err)
	assert.Len(t, m, 2)
	srv.Del("test:r")
	require.NoError(t, lc.Get(ctx, "r", &got))
	assert.Equal(t, "QQQ", got.Ticker)

	require.NoError(t, lc.DeleteByPattern(ctx, "*"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}
