package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuly/internal/models"
)

func TestEmitReachesOnlyRecipient(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := b.Subscribe(ctx, "u1")
	other := b.Subscribe(ctx, "u2")

	b.Emit(models.Notification{ID: "n1", UserID: "u1", Title: "Hi"})

	select {
	case n := <-mine:
		assert.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
	select {
	case n := <-other:
		t.Fatalf("unexpected delivery %v", n)
	default:
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Subscribe(ctx, "u1")
	for i := 0; i < clientBuffer+5; i++ {
		b.Emit(models.Notification{UserID: "u1"})
	}
	assert.Len(t, ch, clientBuffer)
}

func TestUnsubscribeOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Subscribe(ctx, "u1")
	require.Equal(t, 1, b.ClientCount("u1"))

	cancel()
	require.Eventually(t, func() bool { return b.ClientCount("u1") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}
