package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	"TrendScanner/internal/repository"
	apimetrics "TrendScanner/internal/service/metrics"
	"TrendScanner/internal/service/ratelimit"
	"TrendScanner/internal/usecase"
	xhttp "TrendScanner/pkg/http"
	xlogger "TrendScanner/pkg/logger"
	"TrendScanner/pkg/util"
)

// ScanCache memoises ad-hoc scans keyed by request.
type ScanCache interface {
	CachedScan(ctx context.Context, req models.ScanRequest) (*models.ScanResult, bool)
	SaveScan(ctx context.Context, req models.ScanRequest, res *models.ScanResult) error
}

// RateLimit configures the per-client token bucket of the /api group.
type RateLimit struct {
	Capacity float64
	Refill   float64
}

// ScanResponse is a scan result with its records filtered for display.
type ScanResponse struct {
	*models.ScanResult
	Counts map[models.SetupLabel]int `json:"counts"`
	Total  int                       `json:"total"`
}

type SentimentResponse struct {
	RunID       string                    `json:"run_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Sentiment   models.MarketSentiment    `json:"sentiment"`
	Counts      map[models.SetupLabel]int `json:"counts"`
}

type AlertsResponse struct {
	Date   string         `json:"date"`
	Alerts []models.Alert `json:"alerts"`
}

// ScannerEchoHandler serves the scanner over Echo.
type ScannerEchoHandler struct {
	logger  *xlogger.Logger
	scanner *usecase.Scanner
	cycle   *usecase.ScanCycle
	jobs    *usecase.ScanJobs
	cache   ScanCache
	data    domrepo.MarketData
	limiter *ratelimit.Limiter
	limit   RateLimit
	now     func() time.Time
}

// NewScannerEchoHandler builds the handler. jobs and cache may be nil; job
// routes then answer 503 and ad-hoc scans are not memoised.
func NewScannerEchoHandler(logger *xlogger.Logger, scanner *usecase.Scanner, cycle *usecase.ScanCycle, jobs *usecase.ScanJobs, cache ScanCache, data domrepo.MarketData, limit RateLimit) *ScannerEchoHandler {
	return &ScannerEchoHandler{
		logger:  logger,
		scanner: scanner,
		cycle:   cycle,
		jobs:    jobs,
		cache:   cache,
		data:    data,
		limiter: ratelimit.New(limit.Capacity, limit.Refill),
		limit:   limit,
		now:     time.Now,
	}
}

func (h *ScannerEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api", h.limiter.Middleware())
	g.GET("/scan", h.Scan)
	g.GET("/scan/latest", h.Latest)
	g.POST("/scan/refresh", h.Refresh)
	g.GET("/scan/export.csv", h.ExportCSV)
	g.POST("/scan/jobs", h.SubmitJob)
	g.GET("/scan/jobs/:id", h.JobStatus)
	g.GET("/sentiment", h.Sentiment)
	g.GET("/alerts", h.Alerts)
	g.GET("/calendar", h.Calendar)
	g.GET("/series/:ticker", h.Series)
}

func (h *ScannerEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Scan returns the scheduled cycle, or runs a custom scan when the query
// names tickers, a preset or a lookback.
func (h *ScannerEchoHandler) Scan(c echo.Context) error {
	start := time.Now()
	req := &models.ScanQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.resolve(c.Request().Context(), req)
	apimetrics.Observe("scan", start, err)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, present(res, filterFor(req)))
}

func (h *ScannerEchoHandler) Latest(c echo.Context) error {
	start := time.Now()
	res, err := h.cycle.Latest(c.Request().Context())
	apimetrics.Observe("scan_latest", start, err)
	if err != nil {
		return h.fail(c, "scan_latest", err)
	}
	return xhttp.SuccessResponse(c, present(res, models.RecordFilter{}))
}

// Refresh drops cached market data and runs the scheduled universe again.
func (h *ScannerEchoHandler) Refresh(c echo.Context) error {
	start := time.Now()
	res, err := h.cycle.Refresh(c.Request().Context())
	apimetrics.Observe("scan_refresh", start, err)
	if err != nil {
		return h.fail(c, "scan_refresh", err)
	}
	return xhttp.SuccessResponse(c, present(res, models.RecordFilter{}))
}

func (h *ScannerEchoHandler) ExportCSV(c echo.Context) error {
	start := time.Now()
	req := &models.ScanQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.resolve(c.Request().Context(), req)
	apimetrics.Observe("scan_export", start, err)
	if err != nil {
		return h.fail(c, "scan_export", err)
	}

	name := fmt.Sprintf("trendscan_%s.csv", res.GeneratedAt.Format("20060102_1504"))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	c.Response().WriteHeader(http.StatusOK)
	return repository.WriteCSV(c.Response(), filterFor(req).Apply(res.Records))
}

func (h *ScannerEchoHandler) SubmitJob(c echo.Context) error {
	start := time.Now()
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("scan jobs are disabled"))
	}
	req := &models.ScanJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.jobs.Submit(c.Request().Context(), models.ScanRequest{
		Tickers:  req.Tickers,
		Preset:   req.Preset,
		Lookback: req.Lookback,
	})
	apimetrics.Observe("scan_job_submit", start, err)
	if err != nil {
		return h.fail(c, "scan_job_submit", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, st)
}

func (h *ScannerEchoHandler) JobStatus(c echo.Context) error {
	start := time.Now()
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("scan jobs are disabled"))
	}
	st, err := h.jobs.Status(c.Request().Context(), c.Param("id"))
	apimetrics.Observe("scan_job_status", start, err)
	if err != nil {
		return h.fail(c, "scan_job_status", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *ScannerEchoHandler) Sentiment(c echo.Context) error {
	start := time.Now()
	res, err := h.cycle.LatestOrRun(c.Request().Context())
	apimetrics.Observe("sentiment", start, err)
	if err != nil {
		return h.fail(c, "sentiment", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, SentimentResponse{
		RunID:       res.RunID.String(),
		GeneratedAt: res.GeneratedAt,
		Sentiment:   res.Sentiment,
		Counts:      res.CountByLabel(),
	})
}

// Alerts evaluates the macro alert window for date, today by default.
func (h *ScannerEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	analyzer, err := h.scanner.Analyzer(req.Preset)
	if err != nil {
		return h.fail(c, "alerts", err)
	}

	ref, ok := util.ParseDate(req.Date, h.now())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid date %q", req.Date))
	}
	alerts := analyzer.Calendar.Alerts(ref)
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return xhttp.SuccessResponse(c, AlertsResponse{Date: ref.Format(time.DateOnly), Alerts: alerts})
}

func (h *ScannerEchoHandler) Calendar(c echo.Context) error {
	req := &models.CalendarQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	analyzer, err := h.scanner.Analyzer(req.Preset)
	if err != nil {
		return h.fail(c, "calendar", err)
	}
	events := analyzer.Calendar.GenerateEvents(req.Months)
	return xhttp.ListResponse(c, events, int64(len(events)))
}

// Series returns bars with moving averages for charting.
func (h *ScannerEchoHandler) Series(c echo.Context) error {
	start := time.Now()
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers := util.NormalizeTickers([]string{c.Param("ticker")})
	if len(tickers) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	ticker := tickers[0]

	analyzer, err := h.scanner.Analyzer(req.Preset)
	if err != nil {
		return h.fail(c, "series", err)
	}

	ctx := c.Request().Context()
	seriesBy, errs := h.data.FetchDaily(ctx, tickers, domrepo.Lookback(req.Lookback), domrepo.IntervalDaily)
	if ferr := errs[ticker]; ferr != nil {
		apimetrics.Observe("series", start, ferr)
		h.logger.Warn("series fetch failed", xlogger.String("ticker", ticker), xlogger.Error(ferr))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("market data unavailable"))
	}
	series, ok := seriesBy[ticker]
	if !ok || series.Len() == 0 {
		apimetrics.Observe("series", start, models.ErrNoData)
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no data for %s", ticker))
	}

	overlay, err := analyzer.Engine.Overlay(series, util.ParseIntList(req.Periods)...)
	apimetrics.Observe("series", start, err)
	if err != nil {
		return h.fail(c, "series", err)
	}
	return xhttp.SuccessResponse(c, overlay)
}

func (h *ScannerEchoHandler) resolve(ctx context.Context, q *models.ScanQuery) (*models.ScanResult, error) {
	if !q.Custom() {
		return h.cycle.LatestOrRun(ctx)
	}
	req, err := h.scanner.Resolve(models.ScanRequest{
		Tickers:  util.SplitList(q.Tickers),
		Preset:   q.Preset,
		Lookback: q.Lookback,
	})
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if res, ok := h.cache.CachedScan(ctx, req); ok {
			return res, nil
		}
	}
	res, err := h.scanner.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.SaveScan(ctx, req, res); err != nil {
			h.logger.Warn("cache ad-hoc scan", xlogger.Error(err))
		}
	}
	return res, nil
}

func (h *ScannerEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	switch {
	case errors.Is(err, models.ErrUnknownPreset),
		errors.Is(err, models.ErrEmptyUniverse),
		errors.Is(err, models.ErrInvalidParams):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, models.ErrNoResult),
		errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrNoData):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrMalformedSeries):
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError(err.Error()))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("scan timed out"))
	}
	h.logger.Error(endpoint+" failed", xlogger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

func filterFor(q *models.ScanQuery) models.RecordFilter {
	f := models.RecordFilter{HideWait: q.HideWait, ApprovedOnly: q.ApprovedOnly}
	for _, l := range util.SplitList(q.Labels) {
		f.Labels = append(f.Labels, models.SetupLabel(l))
	}
	return f
}

func present(res *models.ScanResult, f models.RecordFilter) ScanResponse {
	out := *res
	out.Records = f.Apply(res.Records)
	return ScanResponse{ScanResult: &out, Counts: res.CountByLabel(), Total: len(res.Records)}
}
