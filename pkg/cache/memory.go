package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

type entry struct {
	data     []byte
	expireAt time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxEntries int
	sweep      time.Duration
	now        func() time.Time
}

// WithMemoryMaxSize bounds the number of entries; the least recently used
// entry is evicted first.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMemorySweep sets how often expired entries are purged.
func WithMemorySweep(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d > 0 {
			c.sweep = d
		}
	}
}

// MemoryCache is a process-local Service backed by an LRU.
type MemoryCache struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
}

var _ Service = (*MemoryCache)(nil)

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{maxEntries: 1000, sweep: 5 * time.Minute, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	// size is always positive here, so New cannot fail
	entries, _ := lru.New[string, entry](cfg.maxEntries)

	mc := &MemoryCache{
		entries: entries,
		now:     cfg.now,
		ticker:  time.NewTicker(cfg.sweep),
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	mc.entries.Add(key, entry{data: data, expireAt: mc.now().Add(ttl)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	b, ok := mc.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(b, dest)
}

// lookup returns a live entry and drops an expired one.
func (mc *MemoryCache) lookup(key string) ([]byte, bool) {
	e, ok := mc.entries.Get(key)
	if !ok {
		return nil, false
	}
	if mc.now().After(e.expireAt) {
		mc.entries.Remove(key)
		return nil, false
	}
	return e.data, true
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if b, ok := mc.lookup(k); ok {
			out[k] = b
		}
	}
	return out, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) error {
	for k, v := range values {
		if err := mc.Set(ctx, k, v, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		mc.entries.Remove(k)
	}
	return nil
}

// DeleteByPattern uses path.Match globbing, which agrees with redis MATCH
// for the '*' and '?' patterns used here.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	for _, k := range mc.entries.Keys() {
		if ok, _ := path.Match(pattern, k); ok {
			mc.entries.Remove(k)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	return mc.entries.Len()
}

func (mc *MemoryCache) sweep() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.ticker.C:
			now := mc.now()
			for _, k := range mc.entries.Keys() {
				if e, ok := mc.entries.Peek(k); ok && now.After(e.expireAt) {
					mc.entries.Remove(k)
				}
			}
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
