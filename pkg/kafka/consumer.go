// Package kafka wraps segmentio/kafka-go for the pipeline's two topics:
// mention batches in, validation decisions out. Values are JSON on the
// wire; DecodeJSON recovers the typed event on the consuming side.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/clinsight/ade-signal-pipeline/pkg/config"
)

// MessageHandler processes one fetched message. A nil return commits the
// offset; an error leaves it uncommitted for redelivery.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads a topic within a consumer group and feeds each message to
// its handler, committing offsets only after the handler succeeds.
type Consumer struct {
	reader  *kafka.Reader
	log     *slog.Logger
	handler MessageHandler
}

// NewConsumer builds a group consumer for topic starting at the latest
// offset.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1e3,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		log:     slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// Start runs the fetch-handle-commit loop until ctx is cancelled. Handler
// errors are logged and the message is skipped without committing, so it
// comes back on the next rebalance rather than blocking the partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopping", "reason", ctx.Err())
			return c.reader.Close()
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("fetch failed", "error", err)
			continue
		}

		c.log.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.log.Error("handler failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
