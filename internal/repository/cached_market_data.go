package repository

import (
	"context"
	"fmt"
	"time"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/cache"
	applogger "TrendScanner/pkg/logger"
)

const (
	seriesKeyPrefix = "series"
	// DefaultSeriesTTL matches how long daily bars are considered fresh.
	DefaultSeriesTTL = 900 * time.Second
)

// CachedMarketData decorates a MarketData source with a series cache and
// optionally archives freshly fetched bars.
type CachedMarketData struct {
	source  domrepo.MarketData
	cache   cache.Service
	ttl     time.Duration
	archive domrepo.BarStore
	l       *applogger.Logger
}

var (
	_ domrepo.MarketData  = (*CachedMarketData)(nil)
	_ domrepo.Invalidator = (*CachedMarketData)(nil)
)

func NewCachedMarketData(source domrepo.MarketData, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedMarketData {
	if ttl <= 0 {
		ttl = DefaultSeriesTTL
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CachedMarketData{source: source, cache: c, ttl: ttl, l: l}
}

// WithArchive stores every cache miss in s.
func (m *CachedMarketData) WithArchive(s domrepo.BarStore) *CachedMarketData {
	m.archive = s
	return m
}

func seriesKey(lookback domrepo.Lookback, interval domrepo.Interval, ticker string) string {
	return cache.Key(seriesKeyPrefix, lookback, interval, ticker)
}

func (m *CachedMarketData) FetchDaily(ctx context.Context, tickers []string, lookback domrepo.Lookback, interval domrepo.Interval) (map[string]models.PriceSeries, map[string]error) {
	out := make(map[string]models.PriceSeries, len(tickers))
	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = seriesKey(lookback, interval, t)
	}

	cached, err := cache.GetMany[models.PriceSeries](ctx, m.cache, keys...)
	if err != nil {
		m.l.Warn("series cache read failed", applogger.Error(err))
		cached = nil
	}

	misses := make([]string, 0, len(tickers))
	for i, t := range tickers {
		if s, ok := cached[keys[i]]; ok && s.Len() > 0 {
			out[t] = s
			continue
		}
		misses = append(misses, t)
	}
	if len(misses) == 0 {
		return out, map[string]error{}
	}

	fetched, errs := m.source.FetchDaily(ctx, misses, lookback, interval)
	if errs == nil {
		errs = map[string]error{}
	}
	toCache := make(map[string]interface{}, len(fetched))
	archived := make([]models.PriceSeries, 0, len(fetched))
	for t, s := range fetched {
		out[t] = s
		if s.Len() == 0 {
			continue
		}
		toCache[seriesKey(lookback, interval, t)] = s
		archived = append(archived, s)
	}
	if len(toCache) > 0 {
		if err := m.cache.MSet(ctx, toCache, m.ttl); err != nil {
			m.l.Warn("series cache write failed", applogger.Error(err), applogger.Int("series", len(toCache)))
		}
	}
	if m.archive != nil && len(archived) > 0 {
		if err := m.archive.StoreBars(ctx, archived); err != nil {
			m.l.Warn("bar archive failed", applogger.Error(err))
		}
	}

	m.l.Debug("series fetched",
		applogger.Int("cached", len(tickers)-len(misses)),
		applogger.Int("fetched", len(fetched)),
		applogger.Int("failed", len(errs)),
	)
	return out, errs
}

// Invalidate drops cached series for tickers, or all series when empty.
func (m *CachedMarketData) Invalidate(ctx context.Context, tickers []string) error {
	if len(tickers) == 0 {
		if err := m.cache.DeleteByPattern(ctx, cache.Prefixed(seriesKeyPrefix)); err != nil {
			return fmt.Errorf("invalidate series: %w", err)
		}
		return nil
	}
	for _, t := range tickers {
		if err := m.cache.DeleteByPattern(ctx, cache.Key(seriesKeyPrefix, "*", "*", t)); err != nil {
			return fmt.Errorf("invalidate series %s: %w", t, err)
		}
	}
	return nil
}
