package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"venuly/internal/logger"
	"venuly/internal/models"
)

// Handler processes one decoded domain event.
type Handler func(ctx context.Context, event models.DomainEvent) error

type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

// NewTailConsumer joins a fresh group at the end of the topic, skipping
// history. Each API instance uses one to feed its live streams.
func NewTailConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: reader, logger: log}
}

// Start consumes until ctx is cancelled. Offsets are committed after the handler
// returns, so a failed handler leaves the message to be redelivered.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	c.logger.LogKafka("CONSUME", c.reader.Config().Topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Handler failed at offset %d: %v", msg.Offset, err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Commit failed at offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler Handler) error {
	var event models.DomainEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// a poison message would otherwise block the partition
		c.logger.Warn("KAFKA", fmt.Sprintf("Dropping undecodable message at offset %d: %v", msg.Offset, err))
		return nil
	}
	c.logger.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("%s for %s", event.Type, event.RecipientID))
	return handler(ctx, event)
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
