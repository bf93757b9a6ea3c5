// Package kafka publishes platform events to a Kafka cluster.  Publishing is
// strictly best-effort: analysis results are never blocked or failed by an
// unavailable broker.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
)

var (
	ErrProducerClosed = apperrors.New(apperrors.ErrCodeServiceUnavailable, "producer closed")
)

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes messages to Kafka with hash partitioning by key.
type Producer struct {
	writer WriterInterface
	logger logging.Logger
	closed atomic.Bool

	messagesSent   atomic.Int64
	messagesFailed atomic.Int64
}

// NewProducer builds a Producer from the platform Kafka config.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "kafka brokers required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.ProducerRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 100 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	return &Producer{writer: writer, logger: logger}, nil
}

// newProducerWithWriter wires a custom writer.  Tests only.
func newProducerWithWriter(w WriterInterface, logger logging.Logger) *Producer {
	return &Producer{writer: w, logger: logger}
}

// Publish writes one message.  Key selects the partition so all events of a
// document stay ordered.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if topic == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "topic required")
	}
	if len(value) == 0 {
		return apperrors.New(apperrors.ErrCodeValidation, "value required")
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  start,
	})
	if err != nil {
		p.messagesFailed.Add(1)
		return apperrors.Wrap(err, apperrors.ErrCodeExternalService, "kafka publish failed")
	}

	p.messagesSent.Add(1)
	p.logger.Debug("message published",
		logging.String("topic", topic),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// Sent returns the number of successfully published messages.
func (p *Producer) Sent() int64 { return p.messagesSent.Load() }

// Failed returns the number of failed publishes.
func (p *Producer) Failed() int64 { return p.messagesFailed.Load() }

// Close flushes and closes the underlying writer.  Safe to call twice.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
