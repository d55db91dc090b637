package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_Allow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	allow := func(key string) bool {
		ok, _ := l.Allow(key)
		return ok
	}

	assert.True(t, allow("a"))
	assert.True(t, allow("a"))
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
	assert.True(t, allow("b"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, allow("a"))
	assert.False(t, allow("a"))

	// refill is capped at capacity
	now = now.Add(5 * time.Minute)
	assert.True(t, allow("a"))
	assert.True(t, allow("a"))
	assert.False(t, allow("a"))
}

func TestLimiter_DropsIdleVisitors(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(2 * idleTTL)
	l.Allow("b")
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "b")
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 10; i++ {
		ok, _ := l.Allow("a")
		assert.True(t, ok)
	}
	assert.Empty(t, l.visitors)
}

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(New(1, 0.001).Middleware())
	e.GET("/api/scan", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	rec := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2").Code)
}
