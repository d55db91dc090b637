package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	recordsByLabel  *prometheus.GaugeVec
	skippedTotal    *prometheus.CounterVec
	sentimentScore  prometheus.Gauge
	activeAlerts    prometheus.Gauge
	deliveriesTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		scansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_scans_total",
				Help: "Total number of completed scan cycles",
			},
			[]string{"preset"},
		),
		scanDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendscan_scan_duration_seconds",
				Help:    "Duration of scan cycles in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"preset"},
		),
		recordsByLabel: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendscan_records",
				Help: "Records of the last scan by setup label",
			},
			[]string{"label"},
		),
		skippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_skipped_total",
				Help: "Instruments skipped by reason",
			},
			[]string{"reason"},
		),
		sentimentScore: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "trendscan_sentiment_score",
				Help: "Market sentiment score of the last scan (0-100)",
			},
		),
		activeAlerts: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "trendscan_macro_alerts",
				Help: "Macro events inside the alert window",
			},
		),
		deliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_deliveries_total",
				Help: "Result deliveries per sink",
			},
			[]string{"sink", "ok"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendscan_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordScan records a finished cycle.
func (r *Recorder) RecordScan(preset string, records, skipped int, seconds float64) {
	r.scansTotal.WithLabelValues(preset).Inc()
	r.scanDuration.WithLabelValues(preset).Observe(seconds)
}

func (r *Recorder) RecordLabel(label string, n int) {
	r.recordsByLabel.WithLabelValues(label).Set(float64(n))
}

func (r *Recorder) RecordSkipped(reason string) {
	r.skippedTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordSentiment(score float64) {
	r.sentimentScore.Set(score)
}

func (r *Recorder) RecordAlerts(n int) {
	r.activeAlerts.Set(float64(n))
}

func (r *Recorder) RecordDelivery(sink string, ok bool) {
	r.deliveriesTotal.WithLabelValues(sink, strconv.FormatBool(ok)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
