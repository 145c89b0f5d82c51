// Package cache is a Redis read-through cache in front of the content
// store, using go-redis as a plain key/value
// client (no clustering, no pub/sub). Keys are canonical URLs so cache
// hits and misses share the exact same identity the store uses.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"indexbridge/internal/model"
)

type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(client *redis.Client, ttlSeconds int) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &Cache{redis: client, ttl: time.Duration(ttlSeconds) * time.Second}
}

func keyForURL(canonicalURL string) string {
	return "content:by-url:" + canonicalURL
}

// Put writes c into the cache keyed by its canonical URL.
func (c *Cache) Put(ctx context.Context, content model.ScrapedContent) error {
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal cached content: %w", err)
	}
	return c.redis.Set(ctx, keyForURL(content.CanonicalURL), b, c.ttl).Err()
}

// GetByURL returns the cached content for canonicalURL, or (nil, nil) on
// a cache miss. Callers are expected to fall back to the store and call
// Put to populate the cache on a miss.
func (c *Cache) GetByURL(ctx context.Context, canonicalURL string) (*model.ScrapedContent, error) {
	b, err := c.redis.Get(ctx, keyForURL(canonicalURL)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var content model.ScrapedContent
	if err := json.Unmarshal(b, &content); err != nil {
		return nil, fmt.Errorf("unmarshal cached content: %w", err)
	}
	return &content, nil
}

// Invalidate removes the cached entry for canonicalURL. The retention
// sweep calls it for every row it deletes; content writes do not call it,
// so an entry cached before a re-index is served until its TTL expires.
func (c *Cache) Invalidate(ctx context.Context, canonicalURL string) error {
	return c.redis.Del(ctx, keyForURL(canonicalURL)).Err()
}
