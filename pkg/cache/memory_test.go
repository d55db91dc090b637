package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Ticker string  `json:"ticker"`
	Close  float64 `json:"close"`
}

func TestMemoryCache_TypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "p", point{Ticker: "SPY", Close: 512.3}, time.Minute))

	var got point
	require.NoError(t, mc.Get(ctx, "p", &got))
	assert.Equal(t, point{Ticker: "SPY", Close: 512.3}, got)

	var s string
	require.NoError(t, mc.Set(ctx, "s", "raw", 0))
	require.NoError(t, mc.Get(ctx, "s", &s))
	assert.Equal(t, "raw", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)
	assert.Error(t, mc.Set(ctx, "bad", make(chan int), time.Minute))
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "k", &v))
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	for _, k := range []string{
		Key("series", "1y", "1d", "SPY"),
		Key("series", "2y", "1d", "SPY"),
		Key("series", "1y", "1d", "QQQ"),
		"scan:latest",
	} {
		require.NoError(t, mc.Set(ctx, k, k, time.Minute))
	}

	require.NoError(t, mc.DeleteByPattern(ctx, Key("series", "*", "*", "SPY")))
	got, err := mc.MGet(ctx, "series:1y:1d:SPY", "series:2y:1d:SPY", "series:1y:1d:QQQ")
	require.NoError(t, err)
	assert.Equal(t, []string{"series:1y:1d:QQQ"}, keysOf(got))

	require.NoError(t, mc.DeleteByPattern(ctx, Prefixed("series")))
	assert.Equal(t, 1, mc.Len())

	assert.Error(t, mc.DeleteByPattern(ctx, "["))
}

func TestMemoryCache_GetMany(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.MSet(ctx, map[string]interface{}{
		"a": point{Ticker: "A", Close: 1},
		"b": point{Ticker: "B", Close: 2},
		"c": "not json",
	}, time.Minute))

	got, err := GetMany[point](ctx, mc, "a", "b", "c", "d")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2.0, got["b"].Close)

	empty, err := GetMany[point](ctx, mc)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "x", 1, time.Minute))
	require.NoError(t, mc.Set(ctx, "y", 2, time.Minute))
	var v int
	require.NoError(t, mc.Get(ctx, "x", &v))
	require.NoError(t, mc.Set(ctx, "z", 3, time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "y", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "x", &v))
	assert.NoError(t, mc.Get(ctx, "z", &v))
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "series:1y:1d:SPY", Key("series", "1y", "1d", "SPY"))
	assert.Equal(t, "scan:adhoc:*", Prefixed("scan:adhoc"))
	assert.Len(t, Digest("SPY,QQQ|default"), 24)
	assert.Equal(t, Digest("a"), Digest("a"))
	assert.NotEqual(t, Digest("a"), Digest("b"))
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
