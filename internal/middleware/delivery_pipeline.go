package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
)

// Dispatcher is the minimal downstream the pipeline needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, res *models.ScanResult) error
}

type pending struct {
	res      *models.ScanResult
	attempts int
}

// DeliveryPipeline sits between the scan cycle and the result sinks.
// It validates, drops repeated runs, and buffers results for retry when
// downstream is unavailable.
type DeliveryPipeline struct {
	dispatcher  Dispatcher
	metrics     domrepo.Metrics
	log         *logger.Logger
	bufSize     int
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	bufCh       chan *pending
	stopCh      chan struct{}
	doneCh      chan struct{}
	started     bool
	mu          sync.Mutex
	delivered   map[string]time.Time // run id -> delivery time
}

type PipelineOption func(*DeliveryPipeline)

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *DeliveryPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxAttempts bounds redelivery of a buffered result.
func WithMaxAttempts(n int) PipelineOption {
	return func(p *DeliveryPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(lo, hi time.Duration) PipelineOption {
	return func(p *DeliveryPipeline) {
		if lo > 0 && hi >= lo {
			p.minBackoff = lo
			p.maxBackoff = hi
		}
	}
}

func WithPipelineLogger(log *logger.Logger) PipelineOption {
	return func(p *DeliveryPipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// NewDeliveryPipeline creates a new pipeline.
func NewDeliveryPipeline(dispatcher Dispatcher, metrics domrepo.Metrics, opts ...PipelineOption) *DeliveryPipeline {
	p := &DeliveryPipeline{
		dispatcher:  dispatcher,
		metrics:     metrics,
		log:         logger.NewNop(),
		bufSize:     16,
		maxAttempts: 5,
		minBackoff:  500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		delivered:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *pending, p.bufSize)
	return p
}

// Start launches background redelivery of buffered results.
func (p *DeliveryPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := p.minBackoff
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case item := <-p.bufCh:
				if item == nil {
					continue
				}
				item.attempts++
				if err := p.dispatcher.Dispatch(ctx, item.res); err != nil {
					p.metrics.RecordError("pipeline_flush")
					if item.attempts >= p.maxAttempts {
						p.metrics.RecordError("pipeline_give_up")
						p.log.Error("result delivery abandoned",
							logger.String("run_id", item.res.RunID.String()),
							logger.Int("attempts", item.attempts),
							logger.Error(err))
						continue
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					if backoff < p.maxBackoff {
						backoff *= 2
						if backoff > p.maxBackoff {
							backoff = p.maxBackoff
						}
					}
					p.enqueue(item)
					continue
				}
				backoff = p.minBackoff
				p.markDelivered(item.res)
				p.log.Info("buffered result delivered",
					logger.String("run_id", item.res.RunID.String()),
					logger.Int("attempts", item.attempts))
			}
		}
	}()
}

// Stop stops background redelivery and waits for the worker to exit.
func (p *DeliveryPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Pending reports buffered results awaiting redelivery.
func (p *DeliveryPipeline) Pending() int {
	return len(p.bufCh)
}

// Submit validates res and forwards it downstream, buffering on errors.
// A run that was already delivered is dropped.
func (p *DeliveryPipeline) Submit(ctx context.Context, res *models.ScanResult) error {
	start := time.Now()
	if err := validateResult(res); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.seen(res) {
		p.metrics.RecordError("pipeline_duplicate")
		return nil
	}

	if err := p.dispatcher.Dispatch(ctx, res); err != nil {
		p.metrics.RecordError("pipeline_process")
		if !p.enqueue(&pending{res: res, attempts: 1}) {
			return fmt.Errorf("pipeline buffer full: %w", err)
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.markDelivered(res)
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *DeliveryPipeline) enqueue(item *pending) bool {
	select {
	case p.bufCh <- item:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		return true
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return false
	}
}

func (p *DeliveryPipeline) seen(res *models.ScanResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.delivered[res.RunID.String()]
	return ok
}

func (p *DeliveryPipeline) markDelivered(res *models.ScanResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.delivered[res.RunID.String()] = now
	// keep the dedup window to one day
	for id, at := range p.delivered {
		if now.Sub(at) > 24*time.Hour {
			delete(p.delivered, id)
		}
	}
}

func validateResult(res *models.ScanResult) error {
	if res == nil {
		return errors.New("result nil")
	}
	if res.RunID == uuid.Nil {
		return errors.New("run id empty")
	}
	if res.GeneratedAt.IsZero() {
		return errors.New("generated_at missing")
	}
	return nil
}
