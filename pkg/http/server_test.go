package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "fine") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/missing", func(c echo.Context) error { return NotFoundError("no such run") })
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerRoutesAndMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(nil, []Handler{routes{}, nil}, WithMetrics("/metrics", reg, reg))

	rec := serve(s, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = serve(s, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(s, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Message string      `json:"message"`
		Data    []*AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Message)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_NOT_FOUND", body.Data[0].Code)
	assert.Equal(t, "no such run", body.Data[0].Message)

	rec = serve(s, http.MethodGet, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trendscan_http_requests_total{method="GET",route="/ok",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/missing",status="404"`)
}

func TestServerCORS(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}}, WithCORS("https://dash.example"))
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(nil, []Handler{routes{}}, WithHost("127.0.0.1"), WithPort(0))
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Start())
	addr := s.Addr()
	require.NotEmpty(t, addr)

	var out APIResponse
	c := NewClient(WithTimeout(2 * time.Second))
	require.NoError(t, c.GetJSON(context.Background(), "http://"+addr+"/ok", nil, &out))
	assert.Equal(t, "fine", out.Data)

	err := c.GetJSON(context.Background(), "http://"+addr+"/missing", url.Values{"x": {"1"}}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.False(t, se.Temporary())

	require.NoError(t, s.Stop(context.Background()))

	// the port is taken while another server holds it
	busy := NewServer(nil, nil, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, busy.Start())
	defer busy.Stop(context.Background())
	_, port, err := net.SplitHostPort(busy.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	clash := NewServer(nil, nil, WithHost("127.0.0.1"), WithPort(p))
	assert.Error(t, clash.Start())
}

func TestClientSendsHeaders(t *testing.T) {
	var gotUA, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(" overloaded \n"))
	}))
	defer ts.Close()

	c := NewClient(WithUserAgent("trendscan/1"))
	err := c.GetJSON(context.Background(), ts.URL, url.Values{"range": {"1y"}}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
	assert.Equal(t, "overloaded", se.Body)
	assert.Equal(t, "trendscan/1", gotUA)
	assert.Equal(t, "range=1y", gotQuery)
}
