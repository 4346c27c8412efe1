// Package notify carries domain events from the request path to the
// notification dispatcher, either through Kafka or in-process.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"venuly/internal/logger"
	"venuly/internal/metrics"
	"venuly/internal/models"
)

const publishTimeout = 5 * time.Second

// Sink delivers one event. *kafka.Producer and *Dispatcher both satisfy it.
type Sink interface {
	PublishDomainEvent(ctx context.Context, event models.DomainEvent) error
}

type SinkFunc func(ctx context.Context, event models.DomainEvent) error

func (f SinkFunc) PublishDomainEvent(ctx context.Context, event models.DomainEvent) error {
	return f(ctx, event)
}

// Publisher is what services emit through. A nil *Publisher drops events.
type Publisher struct {
	sink   Sink
	logger *logger.Logger
}

func NewPublisher(sink Sink, log *logger.Logger) *Publisher {
	return &Publisher{sink: sink, logger: log}
}

// Publish stamps and delivers the event. Failures are logged and counted, never returned.
func (p *Publisher) Publish(ctx context.Context, event models.DomainEvent) {
	if p == nil || p.sink == nil || event.RecipientID == "" {
		return
	}
	if event.RecipientID == event.ActorID {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	// the request may finish before delivery does
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := p.sink.PublishDomainEvent(ctx, event)
	metrics.RecordDomainEvent(string(event.Type), err)
	if err != nil {
		p.logger.Error("NOTIFY", fmt.Sprintf("Failed to publish %s for %s: %v", event.Type, event.RecipientID, err))
	}
}
