package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/logger"
	"venuly/internal/models"
)

func TestNotificationsTopic(t *testing.T) {
	assert.Equal(t, "venuly.notifications", NotificationsTopic("venuly"))
}

func TestNewProducerKeysByRecipient(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "venuly.notifications", logger.NewNopLogger())
	assert.Equal(t, "venuly.notifications", p.Writer.Topic)
	assert.IsType(t, &kafka.Hash{}, p.Writer.Balancer)
}

func TestConsumerHandleDecodesEvent(t *testing.T) {
	c := &Consumer{logger: logger.NewNopLogger()}
	event := models.DomainEvent{ID: "ev1", Type: models.NotifyProposalReceived, RecipientID: "u1", Title: "New proposal"}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var got models.DomainEvent
	err = c.handle(context.Background(), kafka.Message{Value: payload}, func(_ context.Context, e models.DomainEvent) error {
		got = e
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.Type, got.Type)
}

func TestConsumerHandleSkipsPoisonMessages(t *testing.T) {
	c := &Consumer{logger: logger.NewNopLogger()}
	called := false
	err := c.handle(context.Background(), kafka.Message{Value: []byte("{not json")}, func(context.Context, models.DomainEvent) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestConsumerHandlePropagatesHandlerErrors(t *testing.T) {
	c := &Consumer{logger: logger.NewNopLogger()}
	boom := errors.New("boom")
	err := c.handle(context.Background(), kafka.Message{Value: []byte(`{"id":"x"}`)}, func(context.Context, models.DomainEvent) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestEnsureTopicsExistRequiresBrokers(t *testing.T) {
	assert.Error(t, EnsureTopicsExist(nil, []string{"t"}, logger.NewNopLogger()))
}

func TestTailConsumerStartsAtEnd(t *testing.T) {
	c := NewTailConsumer([]string{"localhost:9092"}, "venuly.notifications", "venuly-live-a", logger.NewNopLogger())
	defer c.Close()

	cfg := c.reader.Config()
	assert.Equal(t, kafka.LastOffset, cfg.StartOffset)
	assert.Equal(t, "venuly-live-a", cfg.GroupID)
}
