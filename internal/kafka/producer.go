package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"venuly/internal/logger"
	"venuly/internal/models"
)

// NotificationsTopic is the topic domain events are published to.
func NotificationsTopic(prefix string) string {
	return prefix + ".notifications"
}

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
	return &Producer{Writer: writer, Logger: log}
}

// PublishDomainEvent streams the event keyed by recipient so a user's events stay ordered.
func (p *Producer) PublishDomainEvent(ctx context.Context, event models.DomainEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RecipientID),
		Value: msgBytes,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.Logger.LogKafka("PUBLISH", p.Writer.Topic, fmt.Sprintf("%s for %s", event.Type, event.RecipientID))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
