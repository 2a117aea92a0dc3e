// Package cache holds the shared Redis tier for lab test templates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pathlab-mcp-server/internal/domain"
)

const templateKeyPrefix = "pathlab:template:"

// RedisTemplateCache stores templates in Redis so every server instance sees
// the same copy between database reads.
type RedisTemplateCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// cachedTemplate wraps a template with cache metadata
type cachedTemplate struct {
	Data      *domain.TestTemplate `json:"data"`
	CachedAt  time.Time            `json:"cached_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// NewRedisTemplateCache connects to Redis using the cache configuration.
func NewRedisTemplateCache(config domain.CacheConfig) (*RedisTemplateCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTemplateCacheWithClient(client, config.DefaultTTL), nil
}

// NewRedisTemplateCacheWithClient wraps an existing client.
func NewRedisTemplateCacheWithClient(client *redis.Client, defaultTTL time.Duration) *RedisTemplateCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisTemplateCache{redis: client, defaultTTL: defaultTTL}
}

// Get returns the cached template. Corrupted or expired entries are removed
// and reported as a miss.
func (c *RedisTemplateCache) Get(ctx context.Context, id string) (*domain.TestTemplate, bool, error) {
	key := templateKeyPrefix + id

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get template cache: %w", err)
	}

	var cached cachedTemplate
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Data == nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// Set caches a template. A zero ttl uses the default.
func (c *RedisTemplateCache) Set(ctx context.Context, tmpl *domain.TestTemplate, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := cachedTemplate{
		Data:      tmpl,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal template cache data: %w", err)
	}

	return c.redis.Set(ctx, templateKeyPrefix+tmpl.ID, jsonData, ttl).Err()
}

// Invalidate drops a template from the cache.
func (c *RedisTemplateCache) Invalidate(ctx context.Context, id string) error {
	return c.redis.Del(ctx, templateKeyPrefix+id).Err()
}

// Close closes the Redis connection.
func (c *RedisTemplateCache) Close() error {
	return c.redis.Close()
}
