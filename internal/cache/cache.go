// Package cache implements the crawl hand-off and seen-URL stores described
// in spec.md §3/§6: large HTML payloads are written once by the crawler,
// referenced by id on the bus, and read once by the parser; the seen-set is
// a short-lived dedup index consulted before any network I/O.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// HandoffTTL is how long a crawl hand-off record survives in the cache.
	HandoffTTL = 10 * time.Minute
	// SeenTTL is how long a URL is considered "recently fetched".
	SeenTTL = 7 * 24 * time.Hour
)

// Record is the crawl hand-off payload: the raw HTML content keyed by a
// fresh id, alongside the URL and depth it was fetched at.
type Record struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Depth   int    `json:"depth"`
	Content string `json:"content"`
}

// Cache wraps a Redis client with the two operations the pipeline needs:
// hand-off record storage and the seen-URL marker set.
type Cache struct {
	rdb *redis.Client
}

// New connects to the Redis instance identified by addr (a REDIS_URL-style
// connection string).
func New(addr string) (*Cache, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping verifies connectivity at startup.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// PutRecord stores rec under rec.ID with the hand-off TTL.
func (c *Cache) PutRecord(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if err := c.rdb.Set(ctx, rec.ID, raw, HandoffTTL).Err(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// GetRecord reads a hand-off record by id. The read is non-destructive; the
// TTL is what eventually cleans it up. ok is false if the id has no entry
// (expired, or never written).
func (c *Cache) GetRecord(ctx context.Context, id string) (rec Record, ok bool, err error) {
	raw, err := c.rdb.Get(ctx, id).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("context: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("context: %w", err)
	}
	return rec, true, nil
}

// MarkSeen records url as fetched within the last SeenTTL. Per spec.md §6
// the key is the absolute URL itself, not a namespaced key.
func (c *Cache) MarkSeen(ctx context.Context, url string) error {
	if err := c.rdb.Set(ctx, url, "", SeenTTL).Err(); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

// Seen reports whether url was marked fetched within the seen-set TTL.
func (c *Cache) Seen(ctx context.Context, url string) (bool, error) {
	n, err := c.rdb.Exists(ctx, url).Result()
	if err != nil {
		return false, fmt.Errorf("context: %w", err)
	}
	return n > 0, nil
}
