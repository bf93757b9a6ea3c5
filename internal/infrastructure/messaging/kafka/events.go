package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// Topic constants
const (
	TopicAnalysisCompleted   = "analysis.completed"
	TopicSnapshotInvalidated = "registry.snapshot.invalidated"
)

// eventSource identifies this service in event envelopes.
const eventSource = "storylink-intelligence"

// EventEnvelope standardizes event messages.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// AnalysisCompletedPayload summarizes one finished document analysis.
type AnalysisCompletedPayload struct {
	ProjectID    string    `json:"project_id"`
	DocumentID   string    `json:"document_id"`
	Generation   uint64    `json:"generation"`
	Trigger      string    `json:"trigger"`
	Mentions     int       `json:"mentions"`
	Suggestions  int       `json:"suggestions"`
	Warnings     int       `json:"warnings"`
	Degraded     bool      `json:"degraded"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}

// SnapshotInvalidatedPayload records an explicit snapshot invalidation.
type SnapshotInvalidatedPayload struct {
	ProjectID     string    `json:"project_id"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

// EventPublisher is the engine-facing publishing contract.  Implementations
// must never propagate broker errors to the caller.
type EventPublisher interface {
	PublishAnalysisCompleted(ctx context.Context, payload AnalysisCompletedPayload)
	PublishSnapshotInvalidated(ctx context.Context, payload SnapshotInvalidatedPayload)
}

// ─────────────────────────────────────────────────────────────────────────────
// Kafka-backed publisher
// ─────────────────────────────────────────────────────────────────────────────

type eventPublisher struct {
	producer *Producer
	logger   logging.Logger
	metrics  *prometheus.DetectionMetrics
}

// NewEventPublisher wraps a Producer into the platform event contract.
func NewEventPublisher(producer *Producer, logger logging.Logger, metrics *prometheus.DetectionMetrics) EventPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopDetectionMetrics()
	}
	return &eventPublisher{producer: producer, logger: logger, metrics: metrics}
}

func (p *eventPublisher) PublishAnalysisCompleted(ctx context.Context, payload AnalysisCompletedPayload) {
	p.publish(ctx, TopicAnalysisCompleted, payload.DocumentID, payload)
}

func (p *eventPublisher) PublishSnapshotInvalidated(ctx context.Context, payload SnapshotInvalidatedPayload) {
	p.publish(ctx, TopicSnapshotInvalidated, payload.ProjectID, payload)
}

func (p *eventPublisher) publish(ctx context.Context, topic, key string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("event payload serialization failed",
			logging.String("topic", topic), logging.Err(err))
		p.metrics.EventsPublishedTotal.WithLabelValues(topic, "failure").Inc()
		return
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     topic,
		Source:        eventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "1.0",
		Payload:       raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		p.logger.Error("event envelope serialization failed",
			logging.String("topic", topic), logging.Err(err))
		p.metrics.EventsPublishedTotal.WithLabelValues(topic, "failure").Inc()
		return
	}

	if err := p.producer.Publish(ctx, topic, []byte(key), value); err != nil {
		// Events are advisory; the analysis result already went out.
		p.logger.Warn("event publish failed",
			logging.String("topic", topic), logging.Err(err))
		p.metrics.EventsPublishedTotal.WithLabelValues(topic, "failure").Inc()
		return
	}
	p.metrics.EventsPublishedTotal.WithLabelValues(topic, "success").Inc()
}

// ─────────────────────────────────────────────────────────────────────────────
// No-op publisher
// ─────────────────────────────────────────────────────────────────────────────

type nopPublisher struct{}

// NewNopPublisher returns an EventPublisher that discards all events.  Used
// when Kafka is disabled.
func NewNopPublisher() EventPublisher { return nopPublisher{} }

func (nopPublisher) PublishAnalysisCompleted(context.Context, AnalysisCompletedPayload)     {}
func (nopPublisher) PublishSnapshotInvalidated(context.Context, SnapshotInvalidatedPayload) {}
