package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w messageWriter, reg *prometheus.Registry) *Producer {
	cfg := defaultConfig()
	cfg.Registerer = reg
	p := newProducer(w, cfg)
	p.now = func() time.Time { return time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC) }
	return p
}

func counter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	fams, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, f := range fams {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(WithRegisterer(prometheus.NewRegistry()))
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true),
		WithCompression("zstd"), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.IsType(t, &kafka.Hash{}, kw.Balancer)
	assert.Equal(t, kafka.Zstd, kw.Compression)
	require.NoError(t, p.Close())
}

func TestPublishBatchEncodes(t *testing.T) {
	w := &fakeWriter{}
	reg := prometheus.NewRegistry()
	p := newTestProducer(w, reg)

	err := p.PublishBatch(context.Background(), "trendscan.records", []Message{
		{Key: []byte("SPY"), Value: map[string]int{"score": 3}},
		{Key: []byte("QQQ"), Value: "raw"},
		{Key: []byte("IWM"), Value: []byte("bytes")},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 3)
	assert.Equal(t, "trendscan.records", w.written[0].Topic)
	assert.Equal(t, "SPY", string(w.written[0].Key))
	assert.JSONEq(t, `{"score":3}`, string(w.written[0].Value))
	assert.Equal(t, "raw", string(w.written[1].Value))
	assert.Equal(t, "bytes", string(w.written[2].Value))
	assert.Equal(t, 2025, w.written[0].Time.Year())

	assert.Equal(t, 3.0, counter(t, reg, "trendscan_kafka_messages_total"))
	assert.Equal(t, 0.0, counter(t, reg, "trendscan_kafka_errors_total"))

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Len(t, w.written, 3)
}

func TestPublishErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	reg := prometheus.NewRegistry()
	p := newTestProducer(w, reg)

	err := p.Publish(context.Background(), "trendscan.summary", []byte("run"), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trendscan.summary")
	assert.Equal(t, 1.0, counter(t, reg, "trendscan_kafka_errors_total"))

	err = p.Publish(context.Background(), "t", nil, make(chan int))
	assert.Error(t, err)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}
