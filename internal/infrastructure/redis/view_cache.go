package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// ViewCache is a JSON-backed Redis cache for read-side projections of type T.
// A ttl of 0 keeps keys until they are deleted.
type ViewCache[T any] struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewViewCache[T any](client RedisClient, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *ViewCache[T]) key(id string) string {
	return c.prefix + id
}

// Get returns (nil, false) on a miss, a Redis error or a value that no longer
// decodes.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(id))
	if err != nil {
		if err != ErrKeyNotFound {
			slog.Warn("view cache read failed", "key", c.key(id), "error", err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		slog.Warn("view cache entry is corrupt", "key", c.key(id), "error", err)
		return nil, false
	}
	return &v, true
}

// Set stores value under id. Write failures are logged only.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("view cache marshal failed", "key", c.key(id), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(id), string(data), c.ttl); err != nil {
		slog.Warn("view cache write failed", "key", c.key(id), "error", err)
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)); err != nil {
		slog.Warn("view cache delete failed", "key", c.key(id), "error", err)
	}
}
