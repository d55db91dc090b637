package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"TrendScanner/pkg/logger"
)

var (
	ErrNotRunning  = errors.New("queue: not running")
	ErrRunning     = errors.New("queue: already running")
	ErrUnknownType = errors.New("queue: no job registered for type")
)

// Depth reports the queue lengths.
type Depth struct {
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// RedisQueue publishes envelopes to <prefix>:messages and consumes them with
// a fixed worker pool. Failed envelopes wait in the <prefix>:retry sorted set
// and end in <prefix>:dlq once the retry limit is spent.
type RedisQueue struct {
	client *redis.Client
	cfg    Config
	log    *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Publisher = (*RedisQueue)(nil)

func NewRedisQueue(client *redis.Client, cfg Config, log *logger.Logger) *RedisQueue {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisQueue{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
		now:    time.Now,
		jobs:   make(map[string]Job),
	}
}

// Register adds a job handler. A later registration of the same type wins.
func (q *RedisQueue) Register(job Job) {
	q.mu.Lock()
	q.jobs[job.Type()] = job
	q.mu.Unlock()
	q.log.Info("queue job registered", logger.String("type", job.Type()))
}

// Start pings redis and launches the workers and the retry promoter.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrRunning
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := q.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx, i)
	}
	q.wg.Add(1)
	go q.promote(ctx)

	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.String("prefix", q.cfg.KeyPrefix))
	return nil
}

// Stop cancels in-flight jobs and waits for the workers until ctx ends.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.log.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Publish enqueues payload for the job registered under jobType.
func (q *RedisQueue) Publish(ctx context.Context, jobType string, payload interface{}) error {
	q.mu.RLock()
	_, ok := q.jobs[jobType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, jobType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{ID: uuid.NewString(), Type: jobType, Payload: raw, EnqueuedAt: q.now().UTC()}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.key("messages"), b).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Depth returns the pending, retrying and dead-lettered counts.
func (q *RedisQueue) Depth(ctx context.Context) (Depth, error) {
	pipe := q.client.Pipeline()
	p := pipe.LLen(ctx, q.key("messages"))
	r := pipe.ZCard(ctx, q.key("retry"))
	d := pipe.LLen(ctx, q.key("dlq"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("queue depth: %w", err)
	}
	return Depth{Pending: p.Val(), Retrying: r.Val(), Dead: d.Val()}, nil
}

func (q *RedisQueue) key(suffix string) string {
	return q.cfg.KeyPrefix + ":" + suffix
}

func (q *RedisQueue) work(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, q.cfg.PollTimeout, q.key("messages")).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			q.log.Error("queue pop failed", logger.Int("worker", id), logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(q.cfg.PollTimeout):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			q.log.Error("queue envelope unreadable", logger.Error(err))
			q.deadLetter(context.Background(), []byte(res[1]))
			continue
		}
		q.run(ctx, env)
	}
}

func (q *RedisQueue) run(ctx context.Context, env Envelope) {
	q.mu.RLock()
	job, ok := q.jobs[env.Type]
	q.mu.RUnlock()
	if !ok {
		env.LastError = ErrUnknownType.Error()
		q.fail(env)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, env.Payload)
	if err == nil {
		q.log.Debug("queue job done",
			logger.String("id", env.ID),
			logger.String("type", env.Type),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return
	}
	if ctx.Err() != nil {
		// shutting down: put the message back for the next process
		q.requeue(env)
		return
	}
	env.LastError = err.Error()
	q.fail(env)
}

// fail schedules a retry with exponential backoff or dead-letters env.
func (q *RedisQueue) fail(env Envelope) {
	env.Attempts++
	b, err := json.Marshal(env)
	if err != nil {
		q.log.Error("queue envelope marshal", logger.Error(err))
		return
	}
	ctx := context.Background()

	if env.Attempts > q.cfg.RetryLimit {
		q.log.Error("queue job dead-lettered",
			logger.String("id", env.ID),
			logger.String("type", env.Type),
			logger.Int("attempts", env.Attempts),
			logger.String("error", env.LastError))
		q.deadLetter(ctx, b)
		return
	}

	at := q.now().Add(q.cfg.backoff(env.Attempts))
	if err := q.client.ZAdd(ctx, q.key("retry"), redis.Z{Score: float64(at.UnixMilli()), Member: b}).Err(); err != nil {
		q.log.Error("queue retry schedule", logger.Error(err))
		return
	}
	q.log.Warn("queue job retry scheduled",
		logger.String("id", env.ID),
		logger.Int("attempt", env.Attempts),
		logger.Time("retry_at", at),
		logger.String("error", env.LastError))
}

func (q *RedisQueue) requeue(env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := q.client.RPush(context.Background(), q.key("messages"), b).Err(); err != nil {
		q.log.Error("queue requeue", logger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(ctx context.Context, b []byte) {
	if err := q.client.LPush(ctx, q.key("dlq"), b).Err(); err != nil {
		q.log.Error("queue dead-letter", logger.Error(err))
	}
}

func (q *RedisQueue) promote(ctx context.Context) {
	defer q.wg.Done()
	t := time.NewTicker(q.cfg.PromoteEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
				q.log.Error("queue retry promotion", logger.Error(err))
			}
		}
	}
}

// promoteDue moves due retries back to the main list. ZREM decides the
// winner when several processes promote the same member.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, q.key("retry"), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}
	for _, m := range due {
		n, err := q.client.ZRem(ctx, q.key("retry"), m).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.key("messages"), m).Err(); err != nil {
			return err
		}
	}
	return nil
}
