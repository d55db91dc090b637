package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendScanner/internal/domain/models"
	drepo "TrendScanner/internal/domain/repository"
)

// 2025-03-06 .. 2025-03-10 14:30 UTC opens; the second bar has a null close.
const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"SPY","gmtoffset":-18000},
  "timestamp":[1741271400,1741357800,1741617000,1741635000],
  "indicators":{
    "quote":[{
      "open":[100,101,102,103],
      "high":[102,103,104,105],
      "low":[99,100,101,102],
      "close":[100,null,104,104.5],
      "volume":[1000,2000,null,500]
    }],
    "adjclose":[{"adjclose":[50,null,52,52.25]}]
  }
}],"error":null}}`

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url, RPS: 1000, Retries: 3, RetryBackoff: time.Millisecond}, nil)
}

func TestFetchDaily_ParsesAndAdjusts(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.RawQuery)
		assert.Equal(t, "/v8/finance/chart/SPY", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	out, errs := newTestClient(srv.URL).FetchDaily(context.Background(), []string{"SPY"}, drepo.Lookback1y, drepo.IntervalDaily)
	require.Empty(t, errs)
	s := out["SPY"]
	require.Equal(t, 2, s.Len())

	q := query.Load().(string)
	assert.Contains(t, q, "range=1y")
	assert.Contains(t, q, "interval=1d")

	first := s.Bars[0]
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), first.Date)
	assert.InDelta(t, 50.0, first.Open, 1e-9)
	assert.InDelta(t, 51.0, first.High, 1e-9)
	assert.InDelta(t, 49.5, first.Low, 1e-9)
	assert.InDelta(t, 50.0, first.Close, 1e-9)
	assert.Equal(t, 1000.0, first.Volume)

	// same-day live bar replaces the earlier one
	last := s.Bars[1]
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), last.Date)
	assert.InDelta(t, 52.25, last.Close, 1e-9)
	assert.Equal(t, 500.0, last.Volume)
}

func TestFetchDaily_PerTickerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/SPY"):
			_, _ = w.Write([]byte(chartBody))
		case strings.HasSuffix(r.URL.Path, "/EMPTY"):
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}
	}))
	defer srv.Close()

	out, errs := newTestClient(srv.URL).FetchDaily(context.Background(), []string{"SPY", "NOPE", "EMPTY"}, drepo.Lookback1y, "")
	assert.Len(t, out, 1)
	require.Len(t, errs, 2)
	assert.Contains(t, errs["NOPE"].Error(), "404")
	assert.True(t, errors.Is(errs["EMPTY"], models.ErrNoData))
}

func TestFetchDaily_RetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	out, errs := newTestClient(srv.URL).FetchDaily(context.Background(), []string{"SPY"}, drepo.Lookback1y, drepo.IntervalDaily)
	assert.Empty(t, errs)
	assert.Equal(t, 2, out["SPY"].Len())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchDaily_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, errs := newTestClient(srv.URL).FetchDaily(context.Background(), []string{"SPY"}, drepo.Lookback1y, drepo.IntervalDaily)
	assert.Contains(t, errs, "SPY")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
