package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanPayload struct {
	JobID   string   `json:"job_id"`
	Tickers []string `json:"tickers"`
}

type countingJob struct {
	mu    sync.Mutex
	calls int
	fail  int
	got   []scanPayload
}

func (j *countingJob) Type() string { return "scan.test" }

func (j *countingJob) Handle(_ context.Context, raw json.RawMessage) error {
	p, err := Decode[scanPayload](raw)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.calls <= j.fail {
		return errors.New("vendor down")
	}
	j.got = append(j.got, p)
	return nil
}

func (j *countingJob) snapshot() (int, []scanPayload) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls, append([]scanPayload(nil), j.got...)
}

func newQueue(t *testing.T, cfg Config) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg.PollTimeout = time.Second
	cfg.PromoteEvery = 20 * time.Millisecond
	return srv, NewRedisQueue(client, cfg, nil)
}

func stop(t *testing.T, q *RedisQueue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestRedisQueue_PublishAndConsume(t *testing.T) {
	_, q := newQueue(t, Config{Workers: 2})
	job := &countingJob{}
	q.Register(job)

	err := q.Publish(context.Background(), "other", scanPayload{})
	assert.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, q.Publish(context.Background(), job.Type(), scanPayload{JobID: "j1", Tickers: []string{"SPY"}}))
	d, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.Pending)

	require.NoError(t, q.Start())
	assert.ErrorIs(t, q.Start(), ErrRunning)
	defer stop(t, q)

	require.Eventually(t, func() bool {
		_, got := job.snapshot()
		return len(got) == 1
	}, 5*time.Second, 10*time.Millisecond)
	_, got := job.snapshot()
	assert.Equal(t, "j1", got[0].JobID)
	assert.Equal(t, []string{"SPY"}, got[0].Tickers)
}

func TestRedisQueue_RetriesThenSucceeds(t *testing.T) {
	_, q := newQueue(t, Config{RetryLimit: 2, RetryDelay: 10 * time.Millisecond})
	job := &countingJob{fail: 2}
	q.Register(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	require.NoError(t, q.Publish(context.Background(), job.Type(), scanPayload{JobID: "j2"}))
	require.Eventually(t, func() bool {
		calls, got := job.snapshot()
		return calls == 3 && len(got) == 1
	}, 10*time.Second, 20*time.Millisecond)

	d, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Depth{}, d)
}

func TestRedisQueue_DeadLetter(t *testing.T) {
	srv, q := newQueue(t, Config{RetryLimit: 1, RetryDelay: 10 * time.Millisecond, KeyPrefix: "tq"})
	job := &countingJob{fail: 100}
	q.Register(job)
	require.NoError(t, q.Start())
	defer stop(t, q)

	require.NoError(t, q.Publish(context.Background(), job.Type(), scanPayload{JobID: "j3"}))
	require.Eventually(t, func() bool {
		d, err := q.Depth(context.Background())
		return err == nil && d.Dead == 1
	}, 10*time.Second, 20*time.Millisecond)

	calls, _ := job.snapshot()
	assert.Equal(t, 2, calls)

	items, err := srv.List("tq:dlq")
	require.NoError(t, err)
	require.Len(t, items, 1)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(items[0]), &env))
	assert.Equal(t, 2, env.Attempts)
	assert.Equal(t, "vendor down", env.LastError)
}

func TestConfigBackoff(t *testing.T) {
	c := Config{RetryDelay: time.Second}.withDefaults()
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, "trendscan:queue", c.KeyPrefix)
	assert.Equal(t, 1, c.Workers)
}

func TestDecode(t *testing.T) {
	p, err := Decode[scanPayload](json.RawMessage(`{"job_id":"x","tickers":["QQQ"]}`))
	require.NoError(t, err)
	assert.Equal(t, scanPayload{JobID: "x", Tickers: []string{"QQQ"}}, p)

	_, err = Decode[scanPayload](json.RawMessage(`[`))
	assert.Error(t, err)
}
