package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships a batch of aggregated entries to topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush period, default 30s
	CountThreshold int           // distinct entries that force a flush, default 100
	MinLevel       string        // lowest collected level, default warn
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry counts identical log lines between two flushes.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates log lines and publishes them in batches from a
// single goroutine, most frequent first.
type LogCollector struct {
	cfg      CollectionConfig
	minLevel zerolog.Level

	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry

	batches chan []AggregatedLogEntry
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	lvl, err := zerolog.ParseLevel(cfg.MinLevel)
	if err != nil || cfg.MinLevel == "" {
		lvl = zerolog.WarnLevel
	}

	c := &LogCollector{
		cfg:      cfg,
		minLevel: lvl,
		entries:  make(map[uint64]*AggregatedLogEntry),
		batches:  make(chan []AggregatedLogEntry, 4),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// AddLog records one occurrence. Reaching the threshold hands the batch to
// the publishing goroutine.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := fingerprint(level, message, fields, caller)

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	var batch []AggregatedLogEntry
	if len(c.entries) >= c.cfg.CountThreshold {
		batch = c.drainLocked()
	}
	c.mu.Unlock()

	if batch != nil {
		select {
		case c.batches <- batch:
		case <-c.stop:
		default:
			fmt.Fprintf(os.Stderr, "log collector: dropped %d entries, publisher busy\n", len(batch))
		}
	}
}

func fingerprint(level, message string, fields map[string]interface{}, caller string) uint64 {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(0)
	b.WriteString(caller)
	b.WriteByte(0)
	b.WriteString(message)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%v", k, fields[k])
	}
	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return h.Sum64()
}

// drainLocked runs under mu.
func (c *LogCollector) drainLocked() []AggregatedLogEntry {
	if len(c.entries) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out
}

func (c *LogCollector) drain() []AggregatedLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainLocked()
}

func (c *LogCollector) run() {
	defer close(c.done)
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case b := <-c.batches:
			c.publish(b)
		case <-t.C:
			c.publish(c.drain())
		case <-c.stop:
			for {
				select {
				case b := <-c.batches:
					c.publish(b)
				default:
					c.publish(c.drain())
					return
				}
			}
		}
	}
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		// the logger cannot log its own shipping failures
		fmt.Fprintf(os.Stderr, "log collector: publish to %s: %v\n", c.cfg.Topic, err)
	}
}

// Close publishes what is left and stops the collector.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
}
