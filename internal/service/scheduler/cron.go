package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"TrendScanner/pkg/logger"
)

// Task is a scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs tasks on cron expressions. A run still in progress causes
// the next tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	l       *logger.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler. Specs use the standard five-field syntax and
// descriptors such as "@every 15m".
func New(l *logger.Logger, timeout time.Duration) *Scheduler {
	if l == nil {
		l = logger.NewNop()
	}
	cl := cronLogger{l: l}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		l:       l,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers task under name.
func (s *Scheduler) Add(name, spec string, task Task) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, task) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.l.Info("task scheduled", logger.String("task", name), logger.String("spec", spec))
	return id, nil
}

func (s *Scheduler) run(name string, task Task) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := task(ctx); err != nil {
		s.l.Error("scheduled task failed", logger.String("task", name), logger.Error(err),
			logger.Duration("duration_ms", time.Since(start)))
		return
	}
	s.l.Debug("scheduled task done", logger.String("task", name), logger.Duration("duration_ms", time.Since(start)))
}

// Next returns the next activation of id.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kv(keysAndValues), logger.Error(err))...)
}

func kv(keysAndValues []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
