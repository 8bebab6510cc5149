package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sportsagg/common/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testCacheConfig() RedisCacheConfig {
	return RedisCacheConfig{
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
		BreakerHalfOpen: 1,
	}
}

func TestRedisCache_SetAndExists(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisCache(client, testCacheConfig(), nil)
	ctx := context.Background()

	found, err := cache.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, "abc", 2*time.Hour))

	found, err = cache.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)

	val, err := mr.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
	assert.Equal(t, 2*time.Hour, mr.TTL("abc"))

	// Setting again is harmless.
	require.NoError(t, cache.Set(ctx, "abc", 2*time.Hour))
}

func TestRedisCache_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisCache(client, testCacheConfig(), nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "abc", 2*time.Hour))
	mr.FastForward(2*time.Hour + time.Second)

	found, err := cache.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_BreakerOpensOnFailures(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisCache(client, testCacheConfig(), nil)
	ctx := context.Background()

	mr.SetError("LOADING server is loading")

	_, err := cache.Exists(ctx, "abc")
	assert.Error(t, err)
	_, err = cache.Exists(ctx, "abc")
	assert.Error(t, err)
	assert.Equal(t, "open", cache.BreakerState())

	// Open breaker short-circuits even after the server recovers.
	mr.SetError("")
	_, err = cache.Exists(ctx, "abc")
	assert.Error(t, err)
	assert.Error(t, cache.Set(ctx, "abc", time.Hour))
}

func TestRedisCache_CancelledCallerDoesNotTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewRedisCache(client, testCacheConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_, _ = cache.Exists(ctx, "abc")
	}
	assert.Equal(t, "closed", cache.BreakerState())
}

func TestRedisCache_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewRedisCache(client, testCacheConfig(), nil)

	assert.NoError(t, cache.Ping(context.Background()))
	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{
		URL:        "redis://" + mr.Addr() + "/0",
		MaxRetries: 1,
		PoolSize:   4,
	})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 4, client.Options().PoolSize)

	_, err = NewRedisClient(context.Background(), config.RedisConfig{URL: "not-a-url"})
	assert.Error(t, err)
}

func TestRedisCacheConfigFrom(t *testing.T) {
	cfg := RedisCacheConfigFrom(config.DedupConfig{
		CacheTimeout:     50 * time.Millisecond,
		BreakerFailures:  5,
		BreakerCooldown:  10 * time.Second,
		BreakerHalfOpenN: 1,
	})
	assert.Equal(t, RedisCacheConfig{
		Timeout:         50 * time.Millisecond,
		BreakerFailures: 5,
		BreakerCooldown: 10 * time.Second,
		BreakerHalfOpen: 1,
	}, cfg)
}
