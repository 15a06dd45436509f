package casport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return mr
}

func testCacheConfig(addr string) CacheConfig {
	config := DefaultConfig().Cache
	config.Enabled = true
	config.Address = addr
	return config
}

func newTestRedisCache(t *testing.T, mr *miniredis.Miniredis) *RedisCache {
	t.Helper()

	cache, err := NewRedisCache(context.Background(), testCacheConfig(mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	require.False(t, cache.Degraded())

	return cache
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)
	ctx := context.Background()

	record := UserRecord{
		"dn":        "c=US,cn=Tyler",
		"fullName":  "Tyler Durden",
		"age":       float64(33),
		"active":    true,
		"manager":   nil,
		"groups":    []any{"admins", "users"},
		"address":   map[string]any{"city": "Wilmington", "zip": "19801"},
		"clearance": float64(1.5),
	}

	require.NoError(t, cache.Put(ctx, "c=US,cn=Tyler", record))

	got, found, err := cache.Get(ctx, "c=US,cn=Tyler")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, record, got)

	assert.Equal(t, 24*time.Hour, mr.TTL("c=US,cn=Tyler"))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Writes)
	assert.False(t, stats.Degraded)
}

func TestRedisCacheMiss(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)

	got, found, err := cache.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.Equal(t, int64(1), cache.Stats().Misses)
}

func TestRedisCacheExpiry(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "d1", UserRecord{"dn": "d1"}))

	mr.FastForward(23 * time.Hour)
	_, found, err := cache.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, found)

	mr.FastForward(2 * time.Hour)
	_, found, err = cache.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheKeyPrefixAndTTL(t *testing.T) {
	mr := newMiniredis(t)

	config := testCacheConfig(mr.Addr())
	config.KeyPrefix = "casport:"
	config.TTL = time.Hour

	cache, err := NewRedisCache(context.Background(), config)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(context.Background(), "d1", UserRecord{"dn": "d1"}))

	assert.True(t, mr.Exists("casport:d1"))
	assert.False(t, mr.Exists("d1"))
	assert.Equal(t, time.Hour, mr.TTL("casport:d1"))
}

func TestRedisCacheCorruptEntries(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)
	ctx := context.Background()

	entries := map[string]string{
		"not-json":      "--- !ruby/object:Hash\ndn: d1\n",
		"wrong-version": `{"v":2,"stored_at":"2024-01-01T00:00:00Z","record":{"dn":"d1"}}`,
		"array-record":  `{"v":1,"stored_at":"2024-01-01T00:00:00Z","record":["dn"]}`,
		"null-record":   `{"v":1,"stored_at":"2024-01-01T00:00:00Z","record":null}`,
	}

	for key, value := range entries {
		t.Run(key, func(t *testing.T) {
			require.NoError(t, mr.Set(key, value))

			got, found, err := cache.Get(ctx, key)
			assert.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, got)
		})
	}

	assert.False(t, cache.Degraded())
}

func TestRedisCacheUnreachableAtStartup(t *testing.T) {
	mr := newMiniredis(t)
	addr := mr.Addr()
	mr.Close()

	config := testCacheConfig(addr)
	config.DialTimeout = 200 * time.Millisecond

	cache, err := NewRedisCache(context.Background(), config)
	require.NoError(t, err)
	defer cache.Close()

	assert.True(t, cache.Degraded())

	ctx := context.Background()
	_, found, err := cache.Get(ctx, "d1")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Put(ctx, "d1", UserRecord{"dn": "d1"}))
	assert.True(t, cache.Stats().Degraded)
}

func TestRedisCacheFailureEntersDegradedMode(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)
	ctx := context.Background()

	mr.Close()

	_, found, err := cache.Get(ctx, "d1")
	require.Error(t, err)
	assert.True(t, IsCacheUnavailable(err))
	assert.False(t, found)
	assert.True(t, cache.Degraded())

	// Degraded mode short-circuits without network calls.
	_, found, err = cache.Get(ctx, "d1")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Put(ctx, "d1", UserRecord{"dn": "d1"}))
}

func TestRedisCacheRecoversAfterRetryInterval(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)

	var output bytes.Buffer
	ctx := tflogtest.RootLogger(context.Background(), &output)
	ctx = tflog.NewSubsystem(ctx, SubsystemCache)

	now := time.Now()
	cache.now = func() time.Time { return now }

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, _, err := cache.Get(ctx, "d1")
	require.Error(t, err)
	assert.True(t, cache.Degraded())

	mr.SetError("")
	now = now.Add(31 * time.Second)
	assert.False(t, cache.Degraded())

	require.NoError(t, cache.Put(ctx, "d1", UserRecord{"dn": "d1"}))
	_, found, err := cache.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, found)

	entries, err := tflogtest.MultilineJSONDecode(&output)
	require.NoError(t, err)

	events := map[string]int{}
	for _, entry := range entries {
		if event, ok := entry["event"].(string); ok {
			events[event]++
		}
	}
	assert.Equal(t, 1, events["cache_degraded"])
	assert.Equal(t, 1, events["cache_recovered"], "recovery is logged once")
}

func TestRedisCacheCanceledContext(t *testing.T) {
	mr := newMiniredis(t)
	cache := newTestRedisCache(t, mr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, found, err := cache.Get(ctx, "d1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, found)
	assert.False(t, cache.Degraded())
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		config   CacheConfig
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{
			name:     "host with default port",
			config:   CacheConfig{Address: "redis.example.com", Port: 6379},
			wantAddr: "redis.example.com:6379",
		},
		{
			name:     "host and port",
			config:   CacheConfig{Address: "redis.example.com:6380", Port: 6379},
			wantAddr: "redis.example.com:6380",
		},
		{
			name:     "redis url",
			config:   CacheConfig{Address: "redis://:secret@redis.example.com:6390/2"},
			wantAddr: "redis.example.com:6390",
			wantDB:   2,
		},
		{
			name:    "invalid url",
			config:  CacheConfig{Address: "redis://redis.example.com/notadb"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := RedisOptions(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.DB)
			assert.Equal(t, -1, opts.MaxRetries)
		})
	}
}

func TestNoopCache(t *testing.T) {
	cache := NewNoopCache()
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "d1", UserRecord{"dn": "d1"}))
	_, found, err := cache.Get(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Close())
	assert.True(t, cache.Stats().Degraded)
}
