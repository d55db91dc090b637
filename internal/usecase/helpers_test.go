package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/internal/services/macro"
)

type nopMetrics struct{}

func (nopMetrics) RecordScan(string, int, int, float64) {}
func (nopMetrics) RecordLabel(string, int) {}
func (nopMetrics) RecordSkipped(string) {}
func (nopMetrics) RecordSentiment(float64) {}
func (nopMetrics) RecordAlerts(int) {}
func (nopMetrics) RecordDelivery(string, bool) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}

type fakeMarketData struct {
	mu     sync.Mutex
	series map[string]models.PriceSeries
	errs   map[string]error
	calls  int
	last   []string
}

func (f *fakeMarketData) FetchDaily(_ context.Context, tickers []string, _ drepo.Lookback, _ drepo.Interval) (map[string]models.PriceSeries, map[string]error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = append([]string(nil), tickers...)
	out := map[string]models.PriceSeries{}
	errs := map[string]error{}
	for _, t := range tickers {
		if err, ok := f.errs[t]; ok {
			errs[t] = err
			continue
		}
		if s, ok := f.series[t]; ok {
			out[t] = s
		}
	}
	return out, errs
}

func (f *fakeMarketData) Invalidate(_ context.Context, _ []string) error { return nil }

// trendSeries ends on end with n bars; closes move by step per bar.
func trendSeries(ticker string, n int, end time.Time, start, step float64) models.PriceSeries {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = models.Bar{
			Date:  end.AddDate(0, 0, i-n+1),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}
}

// fakeEngine returns fixed snapshots per ticker.
type fakeEngine struct {
	snaps map[string]models.IndicatorSnapshot
}

func (f fakeEngine) Snapshot(s models.PriceSeries) (models.IndicatorSnapshot, error) {
	snap, ok := f.snaps[s.Ticker]
	if !ok {
		return models.IndicatorSnapshot{}, fmt.Errorf("%w: %s", models.ErrInsufficientHistory, s.Ticker)
	}
	return snap, nil
}

func (f fakeEngine) Overlay(s models.PriceSeries, _ ...int) (models.SeriesOverlay, error) {
	return models.SeriesOverlay{Ticker: s.Ticker, Bars: s.Bars}, nil
}

func fixedClock(t time.Time) macro.Option {
	return macro.WithClock(func() time.Time { return t })
}

type memResultStore struct {
	mu     sync.Mutex
	latest *models.ScanResult
	jobs   map[string]models.ScanJobStatus
}

func newMemResultStore() *memResultStore {
	return &memResultStore{jobs: map[string]models.ScanJobStatus{}}
}

func (m *memResultStore) SaveLatest(_ context.Context, res *models.ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = res
	return nil
}

func (m *memResultStore) Latest(context.Context) (*models.ScanResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, models.ErrNoResult
	}
	return m.latest, nil
}

func (m *memResultStore) SaveJob(_ context.Context, st *models.ScanJobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[st.ID] = *st
	return nil
}

func (m *memResultStore) GetJob(_ context.Context, id string) (*models.ScanJobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[id]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return &st, nil
}
