// Package audit publishes the portal's audit trail. The Kafka sink is the
// production path; the noop sink serves tests and Kafka-less deployments.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/devportal/internal/config"
	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/logger"
)

// KafkaProducer publishes audit events to a Kafka topic. Events are keyed by
// API key ID so per-key history lands in one partition, in order.
type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaProducer creates a producer against the configured brokers.
func NewKafkaProducer(cfg *config.KafkaConfig, log logger.Logger) service.AuditService {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error(context.Background(), "audit publish failed", err,
					logger.Int("dropped", len(messages)))
			}
		},
	}

	return &KafkaProducer{writer: writer, logger: log.WithComponent("audit")}
}

// LogEvent publishes one event. The writer batches asynchronously, so this
// does not block on the broker.
func (p *KafkaProducer) LogEvent(ctx context.Context, event models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	key := event.APIKeyID
	if key == "" {
		key = event.ID
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Close flushes pending batches and releases the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
