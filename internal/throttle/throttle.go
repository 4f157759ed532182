// Package throttle rejects repeat claim/leave submissions from the same user
// on the same event within a short window.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "seats:throttle:"

// Store records the first hit of a key and refuses further hits until the
// window elapses.
type Store interface {
	// Allow reports whether key may proceed now. A permitted call starts a
	// new window for key.
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Key builds the throttle key for a user acting on an event.
func Key(userID, eventID, action string) string {
	return userID + ":" + eventID + ":" + action
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by SET NX PX so every replica of the
// service shares one window per key.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+key, 1, window).Result()
}

// memoryStore provides process-local throttling. It is concurrency-safe.
type memoryStore struct {
	mu    sync.Mutex
	until map[string]time.Time
	clock func() time.Time
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(clock func() time.Time) *memoryStore {
	return &memoryStore{until: make(map[string]time.Time), clock: clock}
}

func (s *memoryStore) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.until) > 1024 {
		for k, exp := range s.until {
			if !now.Before(exp) {
				delete(s.until, k)
			}
		}
	}

	if exp, ok := s.until[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.until[key] = now.Add(window)
	return true, nil
}

// Noop never throttles.
type Noop struct{}

// Allow always permits the call.
func (Noop) Allow(context.Context, string, time.Duration) (bool, error) { return true, nil }
