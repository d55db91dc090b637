package cache

import (
	"context"
	"time"
)

// LayeredOption configures a LayeredCache.
type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	l1Size int
	l1TTL  time.Duration
}

// WithLayeredMemorySize bounds the L1 entry count.
func WithLayeredMemorySize(n int) LayeredOption {
	return func(c *layeredConfig) {
		if n > 0 {
			c.l1Size = n
		}
	}
}

// WithLayeredMemoryTTL caps how long L1 keeps an entry.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *layeredConfig) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}

// LayeredCache reads through a process-local L1 in front of redis and
// writes through to both.
type LayeredCache struct {
	l1    *MemoryCache
	l2    *RedisCache
	l1TTL time.Duration
}

var _ Service = (*LayeredCache)(nil)

func NewLayeredCache(l2 *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := layeredConfig{l1Size: 1000, l1TTL: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(cfg.l1Size)),
		l2:    l2,
		l1TTL: cfg.l1TTL,
	}
}

// l1Expiry caps the L1 lifetime so other replicas' writes become visible.
func (lc *LayeredCache) l1Expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > lc.l1TTL {
		return lc.l1TTL
	}
	return ttl
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.l1.Set(ctx, key, value, lc.l1Expiry(ttl))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	if err := lc.l1.Get(ctx, key, &raw); err == nil {
		return decode(raw, dest)
	}
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, raw, lc.l1Expiry(0))
	return decode(raw, dest)
}

// MGet serves L1 hits locally and fetches the rest from redis.
func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out, _ := lc.l1.MGet(ctx, keys...)
	missing := make([]string, 0, len(keys)-len(out))
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}
	remote, err := lc.l2.MGet(ctx, missing...)
	if err != nil {
		return nil, err
	}
	for k, b := range remote {
		out[k] = b
		_ = lc.l1.Set(ctx, k, b, lc.l1Expiry(0))
	}
	return out, nil
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) error {
	if err := lc.l2.MSet(ctx, values, ttl); err != nil {
		return err
	}
	return lc.l1.MSet(ctx, values, lc.l1Expiry(ttl))
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	if err := lc.l1.DeleteByPattern(ctx, pattern); err != nil {
		return err
	}
	return lc.l2.DeleteByPattern(ctx, pattern)
}

// Close stops L1 and closes the redis client.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
