// Package caching caches MCP tool results. Classification is pure, so a
// tool call with identical arguments can be answered from the cache.
package caching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "pathlab:mcp:tool:"

// CacheConfig defines configuration for tool result caching
type CacheConfig struct {
	// Redis client for sharing results between server processes. Optional.
	RedisClient *redis.Client
	// Default TTL for cached results
	DefaultTTL time.Duration
	// Maximum number of entries held in memory
	MaxEntries int
	// Enable/disable caching
	Enabled bool
}

// CachedResult represents a cached tool execution result
type CachedResult struct {
	ToolName  string          `json:"tool_name"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Hits      int64           `json:"hits"`

	lastAccessed time.Time
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// ToolResultCache keeps results in memory and, when configured, in Redis.
type ToolResultCache struct {
	config      CacheConfig
	log         *logrus.Logger
	memoryCache map[string]*CachedResult
	mu          sync.Mutex
	stats       CacheStats
}

// NewToolResultCache creates a new tool result cache instance
func NewToolResultCache(config CacheConfig, logger *logrus.Logger) *ToolResultCache {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 10 * time.Minute
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = 1000
	}

	return &ToolResultCache{
		config:      config,
		log:         logger,
		memoryCache: make(map[string]*CachedResult),
	}
}

// GenerateKey creates a cache key for a tool call. Arguments are
// canonicalised first so key order in the JSON does not matter.
func (trc *ToolResultCache) GenerateKey(toolName string, arguments json.RawMessage) string {
	canonical := []byte(arguments)
	var decoded interface{}
	if len(arguments) > 0 && json.Unmarshal(arguments, &decoded) == nil {
		if b, err := json.Marshal(decoded); err == nil {
			canonical = b
		}
	}
	hash := sha256.Sum256(append([]byte(toolName+"::"), canonical...))
	return toolName + ":" + hex.EncodeToString(hash[:])
}

// Get retrieves a cached result if available
func (trc *ToolResultCache) Get(ctx context.Context, toolName string, arguments json.RawMessage) (json.RawMessage, bool) {
	if !trc.config.Enabled {
		return nil, false
	}

	key := trc.GenerateKey(toolName, arguments)
	now := time.Now()

	trc.mu.Lock()
	if cached, ok := trc.memoryCache[key]; ok {
		if now.Before(cached.ExpiresAt) {
			cached.Hits++
			cached.lastAccessed = now
			trc.stats.Hits++
			trc.mu.Unlock()
			return cached.Result, true
		}
		delete(trc.memoryCache, key)
	}
	trc.mu.Unlock()

	if trc.config.RedisClient != nil {
		data, err := trc.config.RedisClient.Get(ctx, redisKeyPrefix+key).Bytes()
		if err == nil {
			var cached CachedResult
			if json.Unmarshal(data, &cached) == nil && now.Before(cached.ExpiresAt) {
				cached.lastAccessed = now
				trc.mu.Lock()
				trc.evictIfNeeded()
				trc.memoryCache[key] = &cached
				trc.stats.Hits++
				trc.mu.Unlock()
				return cached.Result, true
			}
			trc.config.RedisClient.Del(ctx, redisKeyPrefix+key)
		} else if err != redis.Nil {
			trc.log.WithError(err).WithField("tool", toolName).Debug("Redis tool cache read failed")
		}
	}

	trc.mu.Lock()
	trc.stats.Misses++
	trc.mu.Unlock()
	return nil, false
}

// Set stores a result in the cache. A zero ttl uses the default.
func (trc *ToolResultCache) Set(ctx context.Context, toolName string, arguments, result json.RawMessage, ttl time.Duration) error {
	if !trc.config.Enabled {
		return nil
	}
	if ttl == 0 {
		ttl = trc.config.DefaultTTL
	}

	key := trc.GenerateKey(toolName, arguments)
	now := time.Now()
	cached := &CachedResult{
		ToolName:     toolName,
		Result:       result,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		lastAccessed: now,
	}

	trc.mu.Lock()
	trc.evictIfNeeded()
	trc.memoryCache[key] = cached
	trc.mu.Unlock()

	if trc.config.RedisClient != nil {
		data, err := json.Marshal(cached)
		if err != nil {
			return fmt.Errorf("failed to marshal cached result: %w", err)
		}
		if err := trc.config.RedisClient.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
			// the memory copy is still valid
			trc.log.WithError(err).WithField("tool", toolName).Warn("Failed to store tool result in Redis")
		}
	}

	return nil
}

// InvalidateByTool removes all cached results for a specific tool
func (trc *ToolResultCache) InvalidateByTool(ctx context.Context, toolName string) error {
	trc.mu.Lock()
	for key, cached := range trc.memoryCache {
		if cached.ToolName == toolName {
			delete(trc.memoryCache, key)
		}
	}
	trc.mu.Unlock()

	if trc.config.RedisClient == nil {
		return nil
	}

	iter := trc.config.RedisClient.Scan(ctx, 0, redisKeyPrefix+toolName+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning cached results: %w", err)
	}
	if len(keys) > 0 {
		if err := trc.config.RedisClient.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("deleting cached results: %w", err)
		}
	}
	return nil
}

// Clear removes all cached results and resets statistics
func (trc *ToolResultCache) Clear(ctx context.Context) error {
	trc.mu.Lock()
	trc.memoryCache = make(map[string]*CachedResult)
	trc.stats = CacheStats{}
	trc.mu.Unlock()

	if trc.config.RedisClient != nil {
		iter := trc.config.RedisClient.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			trc.config.RedisClient.Del(ctx, iter.Val())
		}
		return iter.Err()
	}
	return nil
}

// GetStats returns cache performance statistics
func (trc *ToolResultCache) GetStats() CacheStats {
	trc.mu.Lock()
	defer trc.mu.Unlock()

	stats := trc.stats
	stats.Entries = len(trc.memoryCache)
	return stats
}

// GetHitRatio calculates the cache hit ratio
func (trc *ToolResultCache) GetHitRatio() float64 {
	stats := trc.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total)
}

// IsHealthy reports whether the Redis tier (if any) is reachable.
func (trc *ToolResultCache) IsHealthy(ctx context.Context) bool {
	if !trc.config.Enabled || trc.config.RedisClient == nil {
		return true
	}
	return trc.config.RedisClient.Ping(ctx).Err() == nil
}

// evictIfNeeded drops the least recently used entry once the cache is full.
// Caller holds trc.mu.
func (trc *ToolResultCache) evictIfNeeded() {
	if len(trc.memoryCache) < trc.config.MaxEntries {
		return
	}

	var oldestKey string
	oldestTime := time.Now()
	for key, cached := range trc.memoryCache {
		if !cached.lastAccessed.After(oldestTime) {
			oldestTime = cached.lastAccessed
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(trc.memoryCache, oldestKey)
		trc.stats.Evictions++
	}
}
