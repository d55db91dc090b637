package repository

import (
	"context"
	"fmt"
	"time"

	"TrendScanner/internal/domain/models"
	domrepo "TrendScanner/internal/domain/repository"
	pkgkafka "TrendScanner/pkg/kafka"
)

// Producer is the subset of the kafka producer used by the sinks.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// RecordMessage is one classification record on the records topic.
type RecordMessage struct {
	RunID         string                      `json:"run_id"`
	ReferenceDate string                      `json:"reference_date"`
	Preset        string                      `json:"preset"`
	Record        models.ClassificationRecord `json:"record"`
}

// SummaryMessage carries the market-wide view of a cycle.
type SummaryMessage struct {
	RunID         string                 `json:"run_id"`
	GeneratedAt   time.Time              `json:"generated_at"`
	ReferenceDate string                 `json:"reference_date"`
	Preset        string                 `json:"preset"`
	Records       int                    `json:"records"`
	Approved      int                    `json:"approved"`
	Skipped       int                    `json:"skipped"`
	Sentiment     models.MarketSentiment `json:"sentiment"`
	Alerts        []models.Alert         `json:"alerts"`
}

// KafkaResultSink publishes records keyed by ticker and a summary keyed by run.
type KafkaResultSink struct {
	producer     Producer
	recordsTopic string
	summaryTopic string
}

var _ domrepo.ResultSink = (*KafkaResultSink)(nil)

func NewKafkaResultSink(producer Producer, recordsTopic, summaryTopic string) *KafkaResultSink {
	return &KafkaResultSink{producer: producer, recordsTopic: recordsTopic, summaryTopic: summaryTopic}
}

func (s *KafkaResultSink) Name() string { return "kafka" }

func (s *KafkaResultSink) Deliver(ctx context.Context, res *models.ScanResult) error {
	runID := res.RunID.String()
	ref := res.ReferenceDate.Format(time.DateOnly)
	if len(res.Records) > 0 {
		msgs := make([]pkgkafka.Message, len(res.Records))
		for i, r := range res.Records {
			msgs[i] = pkgkafka.Message{
				Key:   []byte(r.Ticker),
				Value: RecordMessage{RunID: runID, ReferenceDate: ref, Preset: res.Preset, Record: r},
			}
		}
		if err := s.producer.PublishBatch(ctx, s.recordsTopic, msgs); err != nil {
			return fmt.Errorf("publish records: %w", err)
		}
	}
	if s.summaryTopic == "" {
		return nil
	}
	summary := SummaryMessage{
		RunID:         runID,
		GeneratedAt:   res.GeneratedAt,
		ReferenceDate: ref,
		Preset:        res.Preset,
		Records:       len(res.Records),
		Approved:      len(res.Approved()),
		Skipped:       len(res.Skipped),
		Sentiment:     res.Sentiment,
		Alerts:        res.Alerts,
	}
	if err := s.producer.Publish(ctx, s.summaryTopic, []byte(runID), summary); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

func (s *KafkaResultSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

// KafkaLogPublisher ships aggregated logs to a topic.
type KafkaLogPublisher struct {
	producer Producer
}

func NewKafkaLogPublisher(producer Producer) *KafkaLogPublisher {
	return &KafkaLogPublisher{producer: producer}
}

func (p *KafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
