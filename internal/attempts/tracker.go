// Package attempts counts failed authentication attempts per client in a fixed
// TTL window, shared across instances through Redis.
package attempts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker counts failures per key. The window starts at the first failure.
type Tracker interface {
	// Record adds one failure and returns the count in the current window.
	Record(ctx context.Context, key string) (int, error)
	Count(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

const keyPrefix = "casedocs:auth:failures:"

// RedisTracker keeps counters as Redis keys that expire with the window.
type RedisTracker struct {
	client redis.Cmdable
	window time.Duration
}

func NewRedisTracker(client redis.Cmdable, window time.Duration) (*RedisTracker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	return &RedisTracker{client: client, window: window}, nil
}

// Record runs INCR and EXPIRE NX in one MULTI so the counter never outlives
// its window and later failures do not extend it.
func (t *RedisTracker) Record(ctx context.Context, key string) (int, error) {
	var incr *redis.IntCmd
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, keyPrefix+key)
		p.ExpireNX(ctx, keyPrefix+key, t.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func (t *RedisTracker) Count(ctx context.Context, key string) (int, error) {
	v, err := t.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("decode failed attempt count: %w", err)
	}
	return n, nil
}

func (t *RedisTracker) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	return nil
}

type window struct {
	count     int
	expiresAt time.Time
}

// InMemoryTracker serves single-instance development.
type InMemoryTracker struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]window
}

func NewInMemoryTracker(w time.Duration) *InMemoryTracker {
	return &InMemoryTracker{window: w, now: time.Now, entries: make(map[string]window)}
}

func (t *InMemoryTracker) live(key string) (window, bool) {
	e, ok := t.entries[key]
	if !ok {
		return window{}, false
	}
	if !t.now().Before(e.expiresAt) {
		delete(t.entries, key)
		return window{}, false
	}
	return e, true
}

func (t *InMemoryTracker) Record(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.live(key)
	if !ok {
		e = window{expiresAt: t.now().Add(t.window)}
	}
	e.count++
	t.entries[key] = e
	return e.count, nil
}

func (t *InMemoryTracker) Count(_ context.Context, key string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, _ := t.live(key)
	return e.count, nil
}

func (t *InMemoryTracker) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
	return nil
}
