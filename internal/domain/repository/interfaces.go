package repository

import (
	"context"
	"time"

	"TrendScanner/internal/domain/models"
)

// MarketData supplies adjusted daily bars. Per-ticker failures are returned
// in the second map so one bad instrument does not fail the whole fetch.
type MarketData interface {
	FetchDaily(ctx context.Context, tickers []string, lookback Lookback, interval Interval) (map[string]models.PriceSeries, map[string]error)
}

// Invalidator drops cached market data.
type Invalidator interface {
	Invalidate(ctx context.Context, tickers []string) error
}

// BarStore persists and reads daily bars.
type BarStore interface {
	Init(ctx context.Context) error
	StoreBars(ctx context.Context, series []models.PriceSeries) error
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// ResultSink receives every completed scan cycle.
type ResultSink interface {
	Name() string
	Deliver(ctx context.Context, res *models.ScanResult) error
	Close() error
}

// ResultStore keeps the most recent cycle for readers.
type ResultStore interface {
	SaveLatest(ctx context.Context, res *models.ScanResult) error
	Latest(ctx context.Context) (*models.ScanResult, error)
}

// JobStatusStore tracks asynchronous scan jobs.
type JobStatusStore interface {
	SaveJob(ctx context.Context, st *models.ScanJobStatus) error
	GetJob(ctx context.Context, id string) (*models.ScanJobStatus, error)
}

type Metrics interface {
	RecordScan(preset string, records, skipped int, seconds float64)
	RecordLabel(label string, n int)
	RecordSkipped(reason string)
	RecordSentiment(score float64)
	RecordAlerts(n int)
	RecordDelivery(sink string, ok bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
