package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/cache"
)

type stubSource struct {
	mu     sync.Mutex
	calls  [][]string
	series map[string]models.PriceSeries
	errs   map[string]error
}

func (s *stubSource) FetchDaily(_ context.Context, tickers []string, _ domrepo.Lookback, _ domrepo.Interval) (map[string]models.PriceSeries, map[string]error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]string(nil), tickers...))
	out := map[string]models.PriceSeries{}
	errs := map[string]error{}
	for _, t := range tickers {
		if err, ok := s.errs[t]; ok {
			errs[t] = err
			continue
		}
		if series, ok := s.series[t]; ok {
			out[t] = series
		}
	}
	return out, errs
}

type stubBarStore struct {
	stored []models.PriceSeries
}

func (s *stubBarStore) Init(context.Context) error { return nil }

func (s *stubBarStore) StoreBars(_ context.Context, series []models.PriceSeries) error {
	s.stored = append(s.stored, series...)
	return nil
}

func (s *stubBarStore) GetBars(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}

func (s *stubBarStore) Health(context.Context) error { return nil }
func (s *stubBarStore) Close() error { return nil }

func sampleSeries(ticker string, n int) models.PriceSeries {
	end := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.Bar{Date: end.AddDate(0, 0, i-n+1), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}
}

func TestCachedMarketData_CachesSeries(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	src := &stubSource{
		series: map[string]models.PriceSeries{"SPY": sampleSeries("SPY", 3), "QQQ": sampleSeries("QQQ", 3)},
		errs:   map[string]error{"BAD": errors.New("http 404")},
	}
	archive := &stubBarStore{}
	md := NewCachedMarketData(src, mc, time.Minute, nil).WithArchive(archive)
	ctx := context.Background()

	out, errs := md.FetchDaily(ctx, []string{"SPY", "QQQ", "BAD"}, domrepo.Lookback1y, domrepo.IntervalDaily)
	require.Len(t, out, 2)
	require.Contains(t, errs, "BAD")
	assert.Len(t, archive.stored, 2)

	out, errs = md.FetchDaily(ctx, []string{"SPY", "QQQ"}, domrepo.Lookback1y, domrepo.IntervalDaily)
	assert.Len(t, out, 2)
	assert.Empty(t, errs)
	assert.Len(t, src.calls, 1)
	assert.Equal(t, 3, out["SPY"].Len())
	last, ok := out["SPY"].Last()
	require.True(t, ok)
	assert.True(t, last.Date.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))

	// a different lookback is a different key
	md.FetchDaily(ctx, []string{"SPY"}, domrepo.Lookback2y, domrepo.IntervalDaily)
	assert.Len(t, src.calls, 2)
}

func TestCachedMarketData_Invalidate(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	src := &stubSource{series: map[string]models.PriceSeries{"SPY": sampleSeries("SPY", 2), "QQQ": sampleSeries("QQQ", 2)}}
	md := NewCachedMarketData(src, mc, time.Minute, nil)
	ctx := context.Background()

	md.FetchDaily(ctx, []string{"SPY", "QQQ"}, domrepo.Lookback1y, domrepo.IntervalDaily)
	require.NoError(t, md.Invalidate(ctx, []string{"SPY"}))

	md.FetchDaily(ctx, []string{"SPY", "QQQ"}, domrepo.Lookback1y, domrepo.IntervalDaily)
	require.Len(t, src.calls, 2)
	assert.Equal(t, []string{"SPY"}, src.calls[1])

	require.NoError(t, md.Invalidate(ctx, nil))
	md.FetchDaily(ctx, []string{"SPY", "QQQ"}, domrepo.Lookback1y, domrepo.IntervalDaily)
	require.Len(t, src.calls, 3)
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, src.calls[2])
}
