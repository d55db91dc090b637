// Package queue runs background jobs from a redis list with delayed retries
// and a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues a job payload under a job type.
type Publisher interface {
	Publish(ctx context.Context, jobType string, payload interface{}) error
}

// Job handles every message of one type. A returned error schedules a retry
// until the retry limit is reached.
type Job interface {
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Envelope is the stored form of a queued message.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Config tunes the consumer side.
type Config struct {
	KeyPrefix  string
	Workers    int
	RetryLimit int
	// RetryDelay is doubled on every further attempt.
	RetryDelay time.Duration
	// PollTimeout bounds each blocking pop and therefore Stop latency.
	PollTimeout time.Duration
	// PromoteEvery is how often due retries move back to the main list.
	PromoteEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "trendscan:queue"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.PromoteEvery <= 0 {
		c.PromoteEvery = time.Second
	}
	return c
}

// backoff returns the delay before attempt n (1-based) is retried.
func (c Config) backoff(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	return d
}

// Decode unmarshals a job payload.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
