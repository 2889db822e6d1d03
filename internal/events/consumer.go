package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/quantprep/preprocessing-go/internal/config"
)

// fetchRetryDelay throttles the loop when the broker keeps failing, so a
// dead broker does not turn the consumer into a busy loop.
const fetchRetryDelay = time.Second

// MessageHandler processes one inbound message. Implementations must not
// return control-flow errors; failures are their own side effects.
type MessageHandler interface {
	Handle(ctx context.Context, payload []byte)
}

// messageReader is the slice of kafka.Reader the loop uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads ingestion-completed events and feeds them to the handler,
// one message at a time. Each message is processed in isolation: handler
// failures become failure events inside the handler and the loop moves on.
type Consumer struct {
	reader  messageReader
	topic   string
	handler MessageHandler
	logger  *slog.Logger
}

// NewConsumer creates a group consumer on the input topic.
func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.InputTopic,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  reader,
		topic:   cfg.InputTopic,
		handler: handler,
		logger:  logger,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after the
// handler returns, so a crashed process replays the in-flight message; the
// pipeline's upsert keeps the replay idempotent. Fetch failures back off
// before retrying.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", "topic", c.topic)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopping")
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		c.handler.Handle(ctx, msg.Value)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err)
		}
	}
}

// Close shuts the reader down.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
