package casport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheEnvelopeVersion is bumped when the stored layout changes; other versions read as misses.
const cacheEnvelopeVersion = 1

// Cache stores resolved user records keyed by normalized identity.
// Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the stored record, or false when absent, expired or unreachable.
	Get(ctx context.Context, key string) (UserRecord, bool, error)
	// Put stores a record with the configured TTL.
	Put(ctx context.Context, key string, record UserRecord) error
	Close() error
	Stats() CacheStats
}

// CacheStats provides statistics about cache usage.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Writes   int64
	Errors   int64
	HitRate  float64
	Degraded bool
}

type cacheCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
	errors atomic.Int64
}

func (c *cacheCounters) snapshot(degraded bool) CacheStats {
	stats := CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Writes:   c.writes.Load(),
		Errors:   c.errors.Load(),
		Degraded: degraded,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// NoopCache is used when caching is disabled. Every lookup misses.
type NoopCache struct {
	counters cacheCounters
}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(ctx context.Context, key string) (UserRecord, bool, error) {
	c.counters.misses.Add(1)
	return nil, false, nil
}

func (c *NoopCache) Put(ctx context.Context, key string, record UserRecord) error {
	return nil
}

func (c *NoopCache) Close() error {
	return nil
}

func (c *NoopCache) Stats() CacheStats {
	return c.counters.snapshot(true)
}

// RedisCache is a Cache backed by Redis with GET, SET and EXPIRE.
//
// Any network failure switches the cache to degraded mode for RetryInterval.
// While degraded, Get misses and Put is skipped without touching the network.
type RedisCache struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration

	degradedUntil atomic.Int64 // unix nanoseconds
	counters      cacheCounters
	now           func() time.Time
}

type cacheEnvelope struct {
	Version  int             `json:"v"`
	StoredAt time.Time       `json:"stored_at"`
	Record   json.RawMessage `json:"record"`
}

// RedisOptions converts cache settings to go-redis options.
// Address may be a host, host:port, or a redis:// URL.
func RedisOptions(config CacheConfig) (*redis.Options, error) {
	var opts *redis.Options

	if strings.HasPrefix(config.Address, "redis://") || strings.HasPrefix(config.Address, "rediss://") {
		parsed, err := redis.ParseURL(config.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid cache URL: %w", err)
		}
		opts = parsed
	} else {
		addr := config.Address
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, strconv.Itoa(config.Port))
		}
		opts = &redis.Options{
			Addr:     addr,
			Password: config.Password,
			DB:       config.DB,
		}
	}

	opts.DialTimeout = config.DialTimeout
	opts.ReadTimeout = config.ReadTimeout
	opts.WriteTimeout = config.WriteTimeout
	opts.PoolSize = config.PoolSize
	// Fail fast into degraded mode instead of retrying.
	opts.MaxRetries = -1

	return opts, nil
}

// NewRedisCache connects to Redis and probes it with PING.
// An unreachable server yields a degraded cache, not an error.
func NewRedisCache(ctx context.Context, config CacheConfig) (*RedisCache, error) {
	opts, err := RedisOptions(config)
	if err != nil {
		return nil, err
	}

	cache := NewRedisCacheWithClient(redis.NewClient(opts), config)

	probe := config.DialTimeout + config.ReadTimeout
	if probe <= 0 {
		probe = 3 * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, probe)
	defer cancel()

	if err := cache.client.Ping(pingCtx).Err(); err != nil {
		cache.markDegraded(ctx, "ping", err)
	} else {
		LogCacheEvent(ctx, "cache_connected", map[string]any{"address": opts.Addr, "db": opts.DB})
	}

	return cache, nil
}

// NewRedisCacheWithClient wraps an existing go-redis client.
func NewRedisCacheWithClient(client *redis.Client, config CacheConfig) *RedisCache {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	retry := config.RetryInterval
	if retry <= 0 {
		retry = 30 * time.Second
	}

	return &RedisCache{
		client:        client,
		keyPrefix:     config.KeyPrefix,
		ttl:           ttl,
		retryInterval: retry,
		now:           time.Now,
	}
}

func (c *RedisCache) key(identity string) string {
	return c.keyPrefix + identity
}

// Degraded reports whether the cache is currently bypassed.
func (c *RedisCache) Degraded() bool {
	return c.now().UnixNano() < c.degradedUntil.Load()
}

func (c *RedisCache) markDegraded(ctx context.Context, operation string, err error) {
	until := c.now().Add(c.retryInterval)
	c.degradedUntil.Store(until.UnixNano())
	c.counters.errors.Add(1)

	LogCacheEvent(ctx, "cache_degraded", map[string]any{
		"operation":      operation,
		"error":          err.Error(),
		"retry_interval": c.retryInterval.String(),
	})
}

// markRecovered clears a lapsed degraded window after a successful Redis call.
func (c *RedisCache) markRecovered(ctx context.Context) {
	until := c.degradedUntil.Load()
	if until == 0 || !c.degradedUntil.CompareAndSwap(until, 0) {
		return
	}

	LogCacheEvent(ctx, "cache_recovered", map[string]any{
		"degraded_until": time.Unix(0, until).UTC().Format(time.RFC3339),
	})
}

func (c *RedisCache) unavailable(operation, key string, err error) error {
	return NewResolutionError("cache "+operation, ErrorCategoryCacheUnavailable, key, "identity cache unavailable", err)
}

// Get fetches and decodes a record. Corrupt or foreign entries read as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (UserRecord, bool, error) {
	if c.Degraded() {
		c.counters.misses.Add(1)
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.markRecovered(ctx)
		c.counters.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.counters.misses.Add(1)
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		c.markDegraded(ctx, "get", err)
		return nil, false, c.unavailable("get", key, err)
	}
	c.markRecovered(ctx)

	record, err := decodeCacheEntry(data)
	if err != nil {
		c.counters.misses.Add(1)
		c.counters.errors.Add(1)
		LogCacheEvent(ctx, "cache_entry_corrupt", map[string]any{"key": key, "error": err.Error()})
		return nil, false, nil
	}

	c.counters.hits.Add(1)
	return record, true, nil
}

// Put writes the record with SET followed by EXPIRE in one transaction.
func (c *RedisCache) Put(ctx context.Context, key string, record UserRecord) error {
	if c.Degraded() {
		return nil
	}

	data, err := encodeCacheEntry(record, c.now())
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	fullKey := c.key(key)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fullKey, data, 0)
		pipe.Expire(ctx, fullKey, c.ttl)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.markDegraded(ctx, "put", err)
		return c.unavailable("put", key, err)
	}

	c.markRecovered(ctx)
	c.counters.writes.Add(1)
	LogCacheEvent(ctx, "cache_write", map[string]any{"key": key, "ttl_seconds": int64(c.ttl.Seconds())})
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Stats() CacheStats {
	return c.counters.snapshot(c.Degraded())
}

func encodeCacheEntry(record UserRecord, storedAt time.Time) ([]byte, error) {
	raw, err := json.Marshal(map[string]any(record))
	if err != nil {
		return nil, err
	}
	return json.Marshal(cacheEnvelope{
		Version:  cacheEnvelopeVersion,
		StoredAt: storedAt.UTC(),
		Record:   raw,
	})
}

func decodeCacheEntry(data []byte) (UserRecord, error) {
	var envelope cacheEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid cache envelope: %w", err)
	}

	if envelope.Version != cacheEnvelopeVersion {
		return nil, fmt.Errorf("unsupported cache entry version %d", envelope.Version)
	}

	var record map[string]any
	if err := json.Unmarshal(envelope.Record, &record); err != nil {
		return nil, fmt.Errorf("invalid cached record: %w", err)
	}
	if record == nil {
		return nil, errors.New("cached record is not an object")
	}

	return UserRecord(record), nil
}
