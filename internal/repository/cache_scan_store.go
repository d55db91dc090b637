package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/pkg/cache"
)

const (
	latestScanKey  = "scan:latest"
	scanJobPrefix  = "scan:job"
	adhocScanKey   = "scan:adhoc"
	defaultJobTTL  = 24 * time.Hour
	defaultScanTTL = 900 * time.Second
)

// CacheScanStore keeps the latest cycle, job statuses and ad-hoc scan
// results in the cache service.
type CacheScanStore struct {
	cache   cache.Service
	scanTTL time.Duration
	jobTTL  time.Duration
}

var (
	_ domrepo.ResultStore    = (*CacheScanStore)(nil)
	_ domrepo.JobStatusStore = (*CacheScanStore)(nil)
)

func NewCacheScanStore(c cache.Service, scanTTL, jobTTL time.Duration) *CacheScanStore {
	if scanTTL <= 0 {
		scanTTL = defaultScanTTL
	}
	if jobTTL <= 0 {
		jobTTL = defaultJobTTL
	}
	return &CacheScanStore{cache: c, scanTTL: scanTTL, jobTTL: jobTTL}
}

// SaveLatest keeps the result until the next cycle replaces it.
func (s *CacheScanStore) SaveLatest(ctx context.Context, res *models.ScanResult) error {
	return s.cache.Set(ctx, latestScanKey, res, 0)
}

func (s *CacheScanStore) Latest(ctx context.Context) (*models.ScanResult, error) {
	var res models.ScanResult
	if err := s.cache.Get(ctx, latestScanKey, &res); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrNoResult
		}
		return nil, fmt.Errorf("load latest: %w", err)
	}
	return &res, nil
}

func (s *CacheScanStore) SaveJob(ctx context.Context, st *models.ScanJobStatus) error {
	return s.cache.Set(ctx, cache.Key(scanJobPrefix, st.ID), st, s.jobTTL)
}

func (s *CacheScanStore) GetJob(ctx context.Context, id string) (*models.ScanJobStatus, error) {
	var st models.ScanJobStatus
	if err := s.cache.Get(ctx, cache.Key(scanJobPrefix, id), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("load job: %w", err)
	}
	return &st, nil
}

// requestKey is stable under ticker order.
func requestKey(req models.ScanRequest) string {
	tickers := append([]string(nil), req.Tickers...)
	sort.Strings(tickers)
	raw := strings.Join([]string{strings.Join(tickers, ","), req.Preset, req.Lookback, req.Interval}, "|")
	return cache.Key(adhocScanKey, cache.Digest(raw))
}

// CachedScan returns a recent result for an identical request.
func (s *CacheScanStore) CachedScan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, bool) {
	var res models.ScanResult
	if err := s.cache.Get(ctx, requestKey(req), &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (s *CacheScanStore) SaveScan(ctx context.Context, req models.ScanRequest, res *models.ScanResult) error {
	return s.cache.Set(ctx, requestKey(req), res, s.scanTTL)
}

// InvalidateScans drops cached ad-hoc results.
func (s *CacheScanStore) InvalidateScans(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, cache.Prefixed(adhocScanKey))
}
