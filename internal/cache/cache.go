// Package cache provides windowed counters shared by the rate limiter.
// Aggregates are never cached here.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments a key whose count resets after window.
type Counter interface {
	// Incr adds one to key and returns the new count. The window starts on
	// the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Close() error
}

type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(ctx context.Context, addr string, password string, db int) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCounter{client: client, prefix: "ratelimit:"}, nil
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = r.prefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the window anchored to the first hit
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (r *RedisCounter) Close() error {
	return r.client.Close()
}

type InMemoryCounter struct {
	mu      sync.Mutex
	entries map[string]counterEntry
	now     func() time.Time
}

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

func NewInMemoryCounter() *InMemoryCounter {
	return &InMemoryCounter{
		entries: make(map[string]counterEntry),
		now:     time.Now,
	}
}

func (m *InMemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = counterEntry{expiresAt: now.Add(window)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

// Sweep drops expired keys.
func (m *InMemoryCounter) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// Len reports the number of tracked keys.
func (m *InMemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *InMemoryCounter) Close() error {
	return nil
}
