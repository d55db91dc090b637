package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/logger"
)

type recordingSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []*models.ScanResult
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, res *models.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, res)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

type directDelivery struct{ d *ResultDispatcher }

func (dd directDelivery) Submit(ctx context.Context, res *models.ScanResult) error {
	return dd.d.Dispatch(ctx, res)
}

type countingInvalidator struct{ tickers []string }

func (c *countingInvalidator) Invalidate(_ context.Context, tickers []string) error {
	c.tickers = append(c.tickers, tickers...)
	return nil
}

func TestResultDispatcher_JoinsErrors(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "kafka", err: errors.New("broker down")}
	d := NewResultDispatcher([]drepo.ResultSink{ok, bad}, nopMetrics{}, logger.NewNop())

	res := &models.ScanResult{Preset: "default"}
	err := d.Dispatch(context.Background(), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: broker down")
	assert.Len(t, ok.got, 1)
	assert.Len(t, bad.got, 1)
	assert.Equal(t, []string{"ok", "kafka"}, d.Sinks())

	assert.Error(t, d.Dispatch(context.Background(), nil))
}

func TestScanCycle_RunStoresAndDelivers(t *testing.T) {
	data := &fakeMarketData{series: map[string]models.PriceSeries{
		"UP": trendSeries("UP", 260, lastBar, 100, 0.5),
	}}
	scanner := newTestScanner(t, data)
	store := newMemResultStore()
	sink := &recordingSink{name: "mem"}
	inv := &countingInvalidator{}
	cycle := NewScanCycle(scanner, store, inv,
		directDelivery{NewResultDispatcher([]drepo.ResultSink{sink}, nopMetrics{}, logger.NewNop())},
		logger.NewNop(), models.ScanRequest{Tickers: []string{"UP"}})

	_, err := cycle.Latest(context.Background())
	assert.ErrorIs(t, err, models.ErrNoResult)

	res, err := cycle.LatestOrRun(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, data.calls)

	latest, err := cycle.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, latest.RunID)
	assert.Len(t, sink.got, 1)

	again, err := cycle.LatestOrRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, again.RunID)
	assert.Equal(t, 1, data.calls)

	refreshed, err := cycle.Refresh(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, res.RunID, refreshed.RunID)
	assert.Equal(t, []string{"UP"}, inv.tickers)
	assert.Len(t, sink.got, 2)
}

func TestScanCycle_DeliveryFailureDoesNotFailCycle(t *testing.T) {
	data := &fakeMarketData{series: map[string]models.PriceSeries{
		"UP": trendSeries("UP", 260, lastBar, 100, 0.5),
	}}
	bad := &recordingSink{name: "bad", err: errors.New("nope")}
	cycle := NewScanCycle(newTestScanner(t, data), newMemResultStore(), nil,
		directDelivery{NewResultDispatcher([]drepo.ResultSink{bad}, nopMetrics{}, logger.NewNop())},
		logger.NewNop(), models.ScanRequest{Tickers: []string{"UP"}})

	res, err := cycle.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res)
}
