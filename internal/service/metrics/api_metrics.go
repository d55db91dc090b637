package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trendscan",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of scanner API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trendscan",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by scanner API endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors)
	})
}

// Observe records latency for endpoint and counts err.
func Observe(endpoint string, start time.Time, err error) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		APIErrors.WithLabelValues(endpoint).Inc()
	}
}
