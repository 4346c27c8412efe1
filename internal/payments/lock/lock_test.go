package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLocker(client, 10*time.Second), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	l, _ := setupLocker(t)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "proposal-1", "req-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "proposal-1", "req-b")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Acquire(ctx, "proposal-2", "req-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseOnlyByOwner(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "proposal-1", "req-a")
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, "proposal-1", "req-b"))
	assert.True(t, mr.Exists("payment_lock:proposal-1"))

	require.NoError(t, l.Release(ctx, "proposal-1", "req-a"))
	assert.False(t, mr.Exists("payment_lock:proposal-1"))
}

func TestLockExpires(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "proposal-1", "req-a")
	require.NoError(t, err)
	mr.FastForward(11 * time.Second)

	ok, err := l.Acquire(ctx, "proposal-1", "req-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, NewLocker(nil, 0).TTL)
}
