package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "TrendScanner/pkg/logger"
)

// HTTPMetrics records request counts, latency and response size labelled
// by the echo route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the collectors on reg; nil means the default
// registerer.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := []string{"route", "method", "class"}
	return &HTTPMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trendscan",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trendscan",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, labels),
		size: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trendscan",
			Subsystem: "http",
			Name:      "response_bytes",
			Help:      "HTTP response size",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, labels),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trendscan",
			Subsystem: "http",
			Name:      "in_flight",
			Help:      "Requests being served",
		}),
	}
}

// Middleware observes every request. Requests slower than slow are logged
// when l is set and slow is positive.
func (m *HTTPMetrics) Middleware(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			err := next(c)
			if err != nil {
				// commit the error response so the status below is final
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			code := c.Response().Status
			class := strconv.Itoa(code/100) + "xx"
			elapsed := time.Since(start)

			m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(elapsed.Seconds())
			m.size.WithLabelValues(route, method, class).Observe(float64(c.Response().Size))

			if l != nil && slow > 0 && elapsed >= slow {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.Int("status", code),
					applogger.Duration("elapsed", elapsed))
			}
			return nil
		}
	}
}
