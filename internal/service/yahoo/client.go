package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
	xhttp "TrendScanner/pkg/http"
	"TrendScanner/pkg/logger"
	"TrendScanner/pkg/util"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Config controls the chart client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	Concurrency  int
	RPS          float64
	Burst        int
	Retries      int
	RetryBackoff time.Duration
	UserAgent    string
}

// Client implements MarketData backed by the Yahoo chart API.
type Client struct {
	baseURL     string
	http        *xhttp.Client
	limiter     *rate.Limiter
	concurrency int
	retries     int
	backoff     time.Duration
	l           *logger.Logger
}

var _ drepo.MarketData = (*Client)(nil)

// New creates a new Yahoo chart client.
func New(cfg Config, l *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Concurrency
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; trendscanner/1.0)"
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		http:        xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent(cfg.UserAgent)),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		concurrency: cfg.Concurrency,
		retries:     cfg.Retries,
		backoff:     cfg.RetryBackoff,
		l:           l,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// FetchDaily downloads tickers in parallel. A failing ticker lands in the
// error map and does not cancel the others.
func (c *Client) FetchDaily(ctx context.Context, tickers []string, lookback drepo.Lookback, interval drepo.Interval) (map[string]models.PriceSeries, map[string]error) {
	if interval == "" {
		interval = drepo.IntervalDaily
	}
	out := make(map[string]models.PriceSeries, len(tickers))
	errs := make(map[string]error)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	start := time.Now()
	for _, t := range tickers {
		ticker := t
		g.Go(func() error {
			s, err := c.fetchOne(ctx, ticker, lookback, interval)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[ticker] = err
				return nil
			}
			out[ticker] = s
			return nil
		})
	}
	_ = g.Wait()

	c.l.Info("yahoo fetch done",
		logger.Int("requested", len(tickers)),
		logger.Int("ok", len(out)),
		logger.Int("failed", len(errs)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return out, errs
}

func (c *Client) fetchOne(ctx context.Context, ticker string, lookback drepo.Lookback, interval drepo.Interval) (models.PriceSeries, error) {
	endpoint := c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker)
	query := url.Values{
		"range":                {string(lookback)},
		"interval":             {string(interval)},
		"includeAdjustedClose": {"true"},
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.PriceSeries{}, err
		}
		var resp chartResponse
		err := c.http.GetJSON(ctx, endpoint, query, &resp)
		if err == nil {
			return parseChart(ticker, &resp)
		}
		lastErr = err
		if !retryable(err) || attempt == c.retries {
			break
		}
		c.l.Debug("yahoo retry", logger.String("ticker", ticker), logger.Int("attempt", attempt), logger.Error(err))
		select {
		case <-time.After(time.Duration(attempt) * c.backoff):
		case <-ctx.Done():
			return models.PriceSeries{}, ctx.Err()
		}
	}
	return models.PriceSeries{}, fmt.Errorf("yahoo %s: %w", ticker, lastErr)
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// parseChart converts a chart payload into adjusted daily bars. Bars with a
// missing high, low or close are dropped; OHLC is scaled by adjclose/close.
func parseChart(ticker string, resp *chartResponse) (models.PriceSeries, error) {
	if e := resp.Chart.Error; e != nil {
		return models.PriceSeries{}, fmt.Errorf("yahoo %s: %s: %s", ticker, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: %s", models.ErrNoData, ticker)
	}
	r := resp.Chart.Result[0]
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]models.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		high, low, cl := at(q.High, i), at(q.Low, i), at(q.Close, i)
		if high == nil || low == nil || cl == nil {
			continue
		}
		open := cl
		if o := at(q.Open, i); o != nil {
			open = o
		}
		factor := 1.0
		if a := at(adj, i); a != nil && *cl != 0 {
			factor = *a / *cl
		}
		b := models.Bar{
			Date:  util.DateOnly(time.Unix(ts+r.Meta.GMTOffset, 0).UTC()),
			Open:  *open * factor,
			High:  *high * factor,
			Low:   *low * factor,
			Close: *cl * factor,
		}
		if v := at(q.Volume, i); v != nil {
			b.Volume = *v
		}
		// the live session can repeat the last date
		if n := len(bars); n > 0 && bars[n-1].Date.Equal(b.Date) {
			bars[n-1] = b
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return models.PriceSeries{}, fmt.Errorf("%w: %s", models.ErrNoData, ticker)
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
