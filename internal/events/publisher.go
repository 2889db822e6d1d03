// Package events connects the pipeline to the message bus: an inbound
// consumer triggers preprocessing from ingestion-completed events and an
// outbound publisher reports run outcomes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quantprep/preprocessing-go/internal/models"
)

// EventPublisher emits pipeline outcome events.
type EventPublisher interface {
	PublishPreprocessingCompleted(ctx context.Context, event models.PreprocessingCompletedEvent) error
	PublishProcessingFailed(ctx context.Context, event models.ProcessingFailedEvent) error
	Close() error
}

// KafkaPublisher implements EventPublisher over kafka-go writers, one per
// topic. Messages are JSON-encoded and keyed by series_id so one series
// stays in partition order.
type KafkaPublisher struct {
	completed *kafka.Writer
	failed    *kafka.Writer
	logger    *slog.Logger
}

// NewKafkaPublisher creates a publisher for the completed and failed topics.
func NewKafkaPublisher(brokers []string, completedTopic, failedTopic string, logger *slog.Logger) *KafkaPublisher {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		}
	}
	return &KafkaPublisher{
		completed: newWriter(completedTopic),
		failed:    newWriter(failedTopic),
		logger:    logger,
	}
}

// PublishPreprocessingCompleted emits a success event.
func (p *KafkaPublisher) PublishPreprocessingCompleted(ctx context.Context, event models.PreprocessingCompletedEvent) error {
	event.EventType = models.EventTypePreprocessingCompleted
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := p.publish(ctx, p.completed, event.SeriesID, event); err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}
	p.logger.Info("published preprocessing completed",
		"series_id", event.SeriesID,
		"job_id", event.JobID,
		"data_points", event.DataPoints)
	return nil
}

// PublishProcessingFailed emits a failure event. Errors are returned for
// logging but must not abort the caller's loop.
func (p *KafkaPublisher) PublishProcessingFailed(ctx context.Context, event models.ProcessingFailedEvent) error {
	event.EventType = models.EventTypeProcessingFailed
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := p.publish(ctx, p.failed, event.SeriesID, event); err != nil {
		return fmt.Errorf("failed to publish failure event: %w", err)
	}
	p.logger.Error("published processing failed",
		"series_id", event.SeriesID,
		"job_id", event.JobID,
		"stage", event.Stage,
		"error", event.Error)
	return nil
}

func (p *KafkaPublisher) publish(ctx context.Context, writer *kafka.Writer, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

// Close flushes and closes both writers.
func (p *KafkaPublisher) Close() error {
	if err := p.completed.Close(); err != nil {
		return err
	}
	return p.failed.Close()
}
