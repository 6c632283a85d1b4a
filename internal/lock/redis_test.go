package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "sportsmeet:test:", ttl), mr
}

func TestRedisLocker(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	held, unlock, err := l.Lock(ctx, "234567890123")
	require.NoError(t, err)
	assert.True(t, mr.Exists("sportsmeet:test:234567890123"))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, _, err = l.Lock(waitCtx, "234567890123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.ErrorIs(t, held.Err(), context.Canceled)
	assert.False(t, mr.Exists("sportsmeet:test:234567890123"))

	_, unlock2, err := l.Lock(ctx, "234567890123")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ExtendsWhileHeld(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	key := "sportsmeet:test:234567890123"

	held, unlock, err := l.Lock(context.Background(), "234567890123")
	require.NoError(t, err)
	defer unlock()

	mr.FastForward(250 * time.Millisecond)
	require.LessOrEqual(t, mr.TTL(key), 50*time.Millisecond)

	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 100*time.Millisecond
	}, time.Second, 10*time.Millisecond, "held lock is extended")
	assert.NoError(t, held.Err())
}

func TestRedisLocker_LostLockCancelsHolder(t *testing.T) {
	l, mr := newRedisLocker(t, 300*time.Millisecond)
	key := "sportsmeet:test:234567890123"

	held, unlock, err := l.Lock(context.Background(), "234567890123")
	require.NoError(t, err)
	defer unlock()

	// another instance took over after expiry
	require.NoError(t, mr.Set(key, "someone-else"))

	select {
	case <-held.Done():
	case <-time.After(time.Second):
		t.Fatal("holder was not told the lock was lost")
	}

	unlock()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got, "release must not delete a successor's lock")
}
