package throttle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newMemoryStore(func() time.Time { return now })
	key := Key("u", "evt", "claim")

	ok, err := s.Allow(ctx, key, 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Allow(ctx, key, 3*time.Second)
	require.NoError(t, err)
	require.False(t, ok, "second hit inside window is throttled")

	ok, err = s.Allow(ctx, Key("u", "evt", "leave"), 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok, "different action has its own window")

	now = now.Add(3 * time.Second)
	ok, err = s.Allow(ctx, key, 3*time.Second)
	require.NoError(t, err)
	require.True(t, ok, "window elapsed")
}

func TestNoop(t *testing.T) {
	for i := 0; i < 3; i++ {
		ok, err := Noop{}.Allow(context.Background(), "k", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

// newTestRedis connects to TEST_REDIS_ADDR, e.g. localhost:6379
// (docker compose up -d redis).
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisStoreWindow(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	s := NewRedisStore(client)
	key := Key(uuid.New().String(), "evt", "claim")
	t.Cleanup(func() { client.Del(context.Background(), keyPrefix+key) })

	ok, err := s.Allow(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Allow(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok, "second hit inside window is throttled")

	ttl, err := client.PTTL(ctx, keyPrefix+key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0), "window key expires")

	require.Eventually(t, func() bool {
		ok, err := s.Allow(ctx, key, 200*time.Millisecond)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond, "window elapsed")
}

func TestRedisStoreSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	key := Key(uuid.New().String(), "evt", "leave")
	t.Cleanup(func() { client.Del(context.Background(), keyPrefix+key) })

	ok, err := NewRedisStore(client).Allow(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = NewRedisStore(client).Allow(ctx, key, time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "a second replica sees the same window")
}
