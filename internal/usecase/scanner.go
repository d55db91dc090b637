package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/internal/services/sentiment"
	"TrendScanner/pkg/logger"
	"TrendScanner/pkg/util"
)

// Skip reasons recorded in ScanResult.Skipped.
const (
	SkipNoData       = "no data"
	SkipFetch        = "fetch failed"
	SkipInsufficient = "insufficient history"
	SkipMalformed    = "malformed series"
	SkipDegenerate   = "degenerate snapshot"
	SkipOther        = "analysis failed"
)

// ScanDefaults fills fields missing from a ScanRequest.
type ScanDefaults struct {
	Tickers  []string
	Preset   string
	Lookback string
}

// Scanner runs a full scan cycle: fetch, per-instrument analysis in parallel,
// then sentiment and macro alerts once every instrument is done.
type Scanner struct {
	data      domrepo.MarketData
	analyzers Analyzers
	metrics   domrepo.Metrics
	log       *logger.Logger
	defaults  ScanDefaults
	workers   int
	timeout   time.Duration
	now       func() time.Time
}

type ScannerOption func(*Scanner)

// WithWorkers bounds the number of instruments analysed concurrently.
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithScanTimeout bounds the market data fetch of one cycle.
func WithScanTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithNow(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

func NewScanner(data domrepo.MarketData, analyzers Analyzers, metrics domrepo.Metrics, log *logger.Logger, defaults ScanDefaults, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		data:      data,
		analyzers: analyzers,
		metrics:   metrics,
		log:       log,
		defaults:  defaults,
		workers:   8,
		timeout:   60 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyzer exposes the analyzer of a preset.
func (s *Scanner) Analyzer(preset string) (*Analyzer, error) {
	return s.analyzers.Get(preset)
}

// Resolve fills defaults and normalises a request.
func (s *Scanner) Resolve(req models.ScanRequest) (models.ScanRequest, error) {
	if len(req.Tickers) == 0 {
		req.Tickers = s.defaults.Tickers
	}
	req.Tickers = util.NormalizeTickers(req.Tickers)
	if len(req.Tickers) == 0 {
		return req, models.ErrEmptyUniverse
	}
	if req.Preset == "" {
		req.Preset = s.defaults.Preset
	}
	if _, err := s.analyzers.Get(req.Preset); err != nil {
		return req, err
	}
	if req.Lookback == "" {
		req.Lookback = s.defaults.Lookback
	}
	req.Lookback = string(domrepo.NormalizeLookback(req.Lookback))
	if req.Interval == "" {
		req.Interval = string(domrepo.IntervalDaily)
	}
	return req, nil
}

type scanItem struct {
	idx int
	rec models.ClassificationRecord
	err error
}

// Scan runs one cycle. It fails only for an invalid request or a context
// cancelled before any work; per-instrument problems end up in Skipped.
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	req, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	analyzer, _ := s.analyzers.Get(req.Preset)
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	seriesBy, fetchErrs := s.data.FetchDaily(fetchCtx, req.Tickers, domrepo.Lookback(req.Lookback), domrepo.Interval(req.Interval))
	cancel()

	res := &models.ScanResult{
		RunID:       uuid.New(),
		GeneratedAt: s.now().UTC(),
		Preset:      req.Preset,
		Skipped:     map[string]string{},
	}

	jobs := make(chan int)
	ch := make(chan scanItem, len(req.Tickers))
	var wg sync.WaitGroup
	workers := min(s.workers, len(req.Tickers))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rec, err := analyzer.Analyze(seriesBy[req.Tickers[idx]])
				ch <- scanItem{idx: idx, rec: rec, err: err}
			}
		}()
	}

	pending := 0
	for idx, t := range req.Tickers {
		if ferr, ok := fetchErrs[t]; ok && ferr != nil {
			res.Skipped[t] = SkipFetch + ": " + ferr.Error()
			s.metrics.RecordSkipped(SkipFetch)
			continue
		}
		if series, ok := seriesBy[t]; !ok || series.Len() == 0 {
			res.Skipped[t] = SkipNoData
			s.metrics.RecordSkipped(SkipNoData)
			continue
		}
		jobs <- idx
		pending++
	}
	close(jobs)
	go func() { wg.Wait(); close(ch) }()

	slots := make([]*models.ClassificationRecord, len(req.Tickers))
	for it := range ch {
		t := req.Tickers[it.idx]
		if it.err != nil {
			kind, reason := skipReason(it.err)
			res.Skipped[t] = reason
			s.metrics.RecordSkipped(kind)
			s.log.Debug("instrument skipped", logger.String("ticker", t), logger.Error(it.err))
			continue
		}
		rec := it.rec
		slots[it.idx] = &rec
	}

	res.Records = make([]models.ClassificationRecord, 0, pending)
	for _, r := range slots {
		if r == nil {
			continue
		}
		res.Records = append(res.Records, *r)
		if r.AsOf.After(res.ReferenceDate) {
			res.ReferenceDate = r.AsOf
		}
	}
	if res.ReferenceDate.IsZero() {
		res.ReferenceDate = util.DateOnly(s.now())
	}

	res.Sentiment = sentiment.Aggregate(res.Records)
	res.Alerts = analyzer.Calendar.Alerts(res.ReferenceDate)

	s.record(res, time.Since(start))
	return res, nil
}

func (s *Scanner) record(res *models.ScanResult, elapsed time.Duration) {
	s.metrics.RecordScan(res.Preset, len(res.Records), len(res.Skipped), elapsed.Seconds())
	for label, n := range res.CountByLabel() {
		s.metrics.RecordLabel(string(label), n)
	}
	if res.Sentiment.Defined {
		s.metrics.RecordSentiment(res.Sentiment.Score)
	}
	s.metrics.RecordAlerts(len(res.Alerts))
	s.log.Info("scan completed",
		logger.String("run_id", res.RunID.String()),
		logger.String("preset", res.Preset),
		logger.Int("records", len(res.Records)),
		logger.Int("skipped", len(res.Skipped)),
		logger.Float64("sentiment", res.Sentiment.Score),
		logger.Int("alerts", len(res.Alerts)),
		logger.Duration("elapsed_ms", elapsed),
	)
}

// skipReason returns a low-cardinality kind and the text stored in the result.
func skipReason(err error) (string, string) {
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		return SkipInsufficient, SkipInsufficient
	case errors.Is(err, models.ErrMalformedSeries):
		return SkipMalformed, SkipMalformed
	case errors.Is(err, models.ErrDegenerateSnapshot):
		return SkipDegenerate, SkipDegenerate
	default:
		return SkipOther, fmt.Sprintf("%s: %v", SkipOther, err)
	}
}
