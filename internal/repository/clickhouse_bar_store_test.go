package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
)

func TestBuildBarInsert(t *testing.T) {
	bars := sampleSeries("SPY", 3).Bars
	bars[1].Close = math.NaN()

	q, args := buildBarInsert("trendscan.daily_bars", "SPY", bars)
	assert.True(t, strings.HasPrefix(q, "INSERT INTO trendscan.daily_bars (ticker, date, open, high, low, close, volume) VALUES "))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 14)
	assert.Equal(t, "SPY", args[0])
	assert.Equal(t, bars[2].Close, args[12])

	q, args = buildBarInsert("t", "SPY", nil)
	assert.Empty(t, q)
	assert.Nil(t, args)
}

type rangeBarStore struct {
	stubBarStore
	bars map[string][]models.Bar
	from time.Time
}

func (s *rangeBarStore) GetBars(_ context.Context, ticker string, from, _ time.Time) ([]models.Bar, error) {
	s.from = from
	if ticker == "ERR" {
		return nil, errors.New("timeout")
	}
	return s.bars[ticker], nil
}

func TestBarStoreMarketData(t *testing.T) {
	store := &rangeBarStore{bars: map[string][]models.Bar{"SPY": sampleSeries("SPY", 4).Bars}}
	md := NewBarStoreMarketData(store)
	md.now = func() time.Time { return time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC) }

	out, errs := md.FetchDaily(context.Background(), []string{"SPY", "EMPTY", "ERR"}, domrepo.Lookback2y, domrepo.IntervalDaily)
	require.Len(t, out, 1)
	assert.Equal(t, 4, out["SPY"].Len())
	assert.Equal(t, "SPY", out["SPY"].Ticker)
	assert.Contains(t, errs, "ERR")
	assert.NotContains(t, out, "EMPTY")
	assert.Equal(t, 2023, store.from.Year())

	_, errs = md.FetchDaily(context.Background(), []string{"SPY"}, domrepo.Lookback1y, "1wk")
	assert.Contains(t, errs, "SPY")
}
