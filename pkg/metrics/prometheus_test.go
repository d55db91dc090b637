package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordScan("default", 40, 5, 1.5)
	r.RecordScan("default", 40, 5, 2.5)
	r.RecordLabel("wait", 30)
	r.RecordSkipped("no data")
	r.RecordSentiment(69)
	r.RecordAlerts(2)
	r.RecordDelivery("kafka", true)
	r.RecordDelivery("kafka", false)
	r.RecordError("pipeline_flush")
	r.RecordLatency("scan", 0.2)

	fams := gather(t, reg)
	require.Contains(t, fams, "trendscan_scans_total")
	assert.Equal(t, 2.0, fams["trendscan_scans_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 30.0, fams["trendscan_records"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 69.0, fams["trendscan_sentiment_score"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 2.0, fams["trendscan_macro_alerts"].GetMetric()[0].GetGauge().GetValue())
	assert.Len(t, fams["trendscan_deliveries_total"].GetMetric(), 2)
	assert.Equal(t, uint64(2), fams["trendscan_scan_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount())

	// a second recorder on its own registry does not collide
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
