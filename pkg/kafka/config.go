package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Producer.
type Option func(*Config)

// Config holds producer settings.
type Config struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	// HashByKey routes equal keys (tickers) to the same partition.
	HashByKey bool
	// Registerer receives the producer metrics; nil means the default registerer.
	Registerer prometheus.Registerer
}

func defaultConfig() Config {
	return Config{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchSize:    100,
		BatchTimeout: time.Second,
	}
}

func WithBrokers(brokers []string) Option {
	return func(c *Config) { c.Brokers = brokers }
}

// WithCompression sets gzip, snappy, lz4 or zstd.
func WithCompression(compression string) Option {
	return func(c *Config) { c.Compression = compression }
}

// WithRequiredAcks sets required acknowledgements (-1 = all).
func WithRequiredAcks(acks int) Option {
	return func(c *Config) { c.RequiredAcks = acks }
}

func WithMaxAttempts(n int) Option {
	return func(c *Config) { c.MaxAttempts = n }
}

// WithBatch bounds how many messages, or how long, the writer buffers.
func WithBatch(size int, timeout time.Duration) Option {
	return func(c *Config) {
		c.BatchSize = size
		c.BatchTimeout = timeout
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

func WithHashByKey(hash bool) Option {
	return func(c *Config) { c.HashByKey = hash }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) { c.Registerer = reg }
}
