package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const idleTTL = 10 * time.Minute

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per client key. Buckets idle for longer
// than idleTTL are dropped.
type Limiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter allowing capacity requests in a burst and
// refillPerSec afterwards. A capacity below one disables limiting.
func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		limit:    rate.Limit(refillPerSec),
		burst:    int(capacity),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool { return l.burst >= 1 }

// Allow consumes a token for key. When none is left it returns false and
// the wait until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.seen = now
	l.sweep(now)
	l.mu.Unlock()

	r := v.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// sweep runs under mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}
	l.lastSweep = now
	for k, v := range l.visitors {
		if now.Sub(v.seen) > idleTTL {
			delete(l.visitors, k)
		}
	}
}

// Middleware limits requests per client IP. Scans cost vendor quota, so the
// scanner routes sit behind it.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := l.Allow(c.RealIP())
			if ok {
				return next(c)
			}
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
	}
}
