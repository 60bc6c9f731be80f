package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Remote is a shared tier behind the in-process map. Values cross it as JSON.
// Remote failures degrade to local-only caching and are never returned to Get
// callers.
type Remote interface {
	// Get returns the stored bytes and their remaining TTL.
	Get(ctx context.Context, key string) (data []byte, ttl time.Duration, found bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

func remoteGet[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	data, ttl, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.log.Warn("remote get failed", "key", key, "error", err)
		return zero, false
	}
	if !found || ttl <= 0 {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Warn("remote value undecodable", "key", key, "error", err)
		return zero, false
	}

	now := c.now()
	c.mu.Lock()
	c.entries[key] = &entry{value: v, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	return v, true
}

func remoteSet(ctx context.Context, c *Cache, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Debug("value not shareable, kept local", "key", key, "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, data, ttl); err != nil {
		c.log.Warn("remote set failed", "key", key, "error", err)
	}
}
