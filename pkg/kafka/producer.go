package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Producer publishes job triggers and lifecycle events
type Producer struct {
	writer       *kafka.Writer
	logger       ectologger.Logger
	triggerTopic string
	eventsTopic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	TriggerTopic string
	EventsTopic  string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer:       writer,
		logger:       logger,
		triggerTopic: cfg.TriggerTopic,
		eventsTopic:  cfg.EventsTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishTrigger publishes a job trigger. Triggers are keyed by job name so
// every invocation of one job lands on the same partition and runs in order.
func (p *Producer) PublishTrigger(ctx context.Context, trigger *models.TriggerMessage) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishTrigger")
	defer span.End()

	if trigger.InvocationID == "" {
		trigger.InvocationID = uuid.New().String()
	}
	if trigger.Timestamp.IsZero() {
		trigger.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(trigger)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.triggerTopic,
		Key:   []byte(trigger.Job),
		Value: data,
		Headers: []kafka.Header{
			{Key: "job", Value: []byte(trigger.Job)},
			{Key: "invocation_id", Value: []byte(trigger.InvocationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.triggerTopic, "error")
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"job": trigger.Job,
		}).Error("Failed to publish trigger")
		return err
	}
	metrics.RecordKafkaPublish(p.triggerTopic, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"job":           trigger.Job,
		"invocation_id": trigger.InvocationID,
		"continuation":  trigger.Continuation,
	}).Debug("Published trigger")

	return nil
}

// Requeue publishes a continuation trigger so the job picks up where the
// budget-stopped run left off. The invocation ID is carried over so the
// whole chain of runs can be traced as one logical invocation.
func (p *Producer) Requeue(ctx context.Context, original *models.TriggerMessage) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Requeue")
	defer span.End()

	return p.PublishTrigger(ctx, &models.TriggerMessage{
		Job:          original.Job,
		InvocationID: original.InvocationID,
		Continuation: true,
		Params:       original.Params,
		Timestamp:    time.Now().UTC(),
	})
}

// JobEvent reports the outcome of one job run
type JobEvent struct {
	EventType    string          `json:"event_type"` // run.started, run.finished
	Job          string          `json:"job"`
	InvocationID string          `json:"invocation_id,omitempty"`
	Status       string          `json:"status,omitempty"` // exhausted, requeued, error, canceled, stalled
	Processed    int             `json:"processed,omitempty"`
	Skipped      int             `json:"skipped,omitempty"`
	Error        string          `json:"error,omitempty"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// PublishJobEvent publishes a job lifecycle event
func (p *Producer) PublishJobEvent(ctx context.Context, event *JobEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishJobEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.eventsTopic,
		Key:   []byte(event.Job),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "job", Value: []byte(event.Job)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.eventsTopic, "error")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish job event")
		return err
	}
	metrics.RecordKafkaPublish(p.eventsTopic, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"job":        event.Job,
		"status":     event.Status,
	}).Debug("Published job event")

	return nil
}
