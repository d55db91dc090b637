package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
)

// ResultDispatcher fans a finished cycle out to every configured sink.
type ResultDispatcher struct {
	sinks   []drepo.ResultSink
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewResultDispatcher(sinks []drepo.ResultSink, metrics drepo.Metrics, log *logger.Logger) *ResultDispatcher {
	return &ResultDispatcher{sinks: sinks, metrics: metrics, log: log}
}

// Sinks returns the names of the configured sinks.
func (d *ResultDispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch delivers res to all sinks. A failing sink does not stop the
// others; all failures are joined into the returned error.
func (d *ResultDispatcher) Dispatch(ctx context.Context, res *models.ScanResult) error {
	if res == nil {
		return fmt.Errorf("scan result is nil")
	}

	var errs []error
	for _, s := range d.sinks {
		start := time.Now()
		err := s.Deliver(ctx, res)
		d.metrics.RecordDelivery(s.Name(), err == nil)
		if err != nil {
			d.metrics.RecordError("deliver_" + s.Name())
			d.log.Warn("sink delivery failed",
				logger.String("sink", s.Name()),
				logger.String("run_id", res.RunID.String()),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.metrics.RecordLatency("deliver_"+s.Name(), time.Since(start).Seconds())
	}
	return errors.Join(errs...)
}

// Close closes all sinks.
func (d *ResultDispatcher) Close() error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
