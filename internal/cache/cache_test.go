package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient("redis://" + addr)
	assert.Error(t, err)
}

func TestWindowLimiter_BlocksAfterLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	l := NewWindowLimiter(rdb, "forgot", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, retry, err := l.Allow(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)

	ok, _, err = l.Allow(ctx, "b@example.com")
	require.NoError(t, err)
	assert.True(t, ok, "keys are limited independently")
}

func TestWindowLimiter_WindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewWindowLimiter(rdb, "forgot", 1, time.Minute)
	ctx := context.Background()

	ok, _, _ := l.Allow(ctx, "a@example.com")
	require.True(t, ok)
	ok, _, _ = l.Allow(ctx, "a@example.com")
	require.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, _, err := l.Allow(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindowLimiter_NilClientAllows(t *testing.T) {
	l := NewWindowLimiter(nil, "forgot", 1, time.Minute)
	for i := 0; i < 5; i++ {
		ok, _, err := l.Allow(context.Background(), "a@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestWindowLimiter_FailsOpenOnRedisError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewWindowLimiter(rdb, "forgot", 1, time.Minute)
	mr.Close()

	ok, _, err := l.Allow(context.Background(), "a@example.com")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRedisEventStore(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisEventStore(rdb)
	ctx := context.Background()

	first, err := store.MarkSeen(ctx, "evt_1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkSeen(ctx, "evt_1", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, 24*time.Hour, mr.TTL("stripe:event:evt_1"))

	require.NoError(t, store.Forget(ctx, "evt_1"))
	first, err = store.MarkSeen(ctx, "evt_1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestInMemoryEventStore_Expiry(t *testing.T) {
	store := NewInMemoryEventStore()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	first, _ := store.MarkSeen(ctx, "evt_1", time.Hour)
	assert.True(t, first)
	again, _ := store.MarkSeen(ctx, "evt_1", time.Hour)
	assert.False(t, again)

	now = now.Add(time.Hour + time.Second)
	afterExpiry, _ := store.MarkSeen(ctx, "evt_1", time.Hour)
	assert.True(t, afterExpiry)
}

func TestInMemoryEventStore_EvictsExpiredIDs(t *testing.T) {
	store := NewInMemoryEventStore()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		first, err := store.MarkSeen(ctx, fmt.Sprintf("evt_%d", i), 24*time.Hour)
		require.NoError(t, err)
		require.True(t, first)
		now = now.Add(time.Hour)
	}

	// ids marked in the last 24h are still live, plus the one just added
	assert.LessOrEqual(t, len(store.seen), 25)

	now = now.Add(25 * time.Hour)
	_, err := store.MarkSeen(ctx, "evt_last", 24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, store.seen, 1)
}
