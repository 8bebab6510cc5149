package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/telhawk-systems/sportsagg/common/config"
)

// presence is the value stored for a seen fingerprint.
const presence = "1"

// RedisCacheConfig tunes the Redis-backed cache.
type RedisCacheConfig struct {
	// Timeout bounds every cache call.
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration

	// BreakerHalfOpen is the number of probe calls allowed while half-open.
	BreakerHalfOpen uint32
}

// RedisCacheConfigFrom builds a RedisCacheConfig from the dedup settings.
func RedisCacheConfigFrom(cfg config.DedupConfig) RedisCacheConfig {
	return RedisCacheConfig{
		Timeout:         cfg.CacheTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		BreakerHalfOpen: cfg.BreakerHalfOpenN,
	}
}

// RedisCache is a Cache backed by Redis. A circuit breaker stops calls to an
// unhealthy server so that checks fail fast instead of waiting for timeouts.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[bool]
	timeout time.Duration
}

// NewRedisCache wraps client.
func NewRedisCache(client *redis.Client, cfg RedisCacheConfig, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerHalfOpen == 0 {
		cfg.BreakerHalfOpen = 1
	}
	logger = logger.With(slog.String("component", "redis_cache"))

	settings := gobreaker.Settings{
		Name:        "dedup-cache",
		MaxRequests: cfg.BreakerHalfOpen,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// The caller giving up is not a sign of an unhealthy server.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &RedisCache{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[bool](settings),
		timeout: cfg.Timeout,
	}
}

// Exists implements Cache.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	found, err := c.breaker.Execute(func() (bool, error) {
		n, err := c.client.Exists(ctx, key).Result()
		return n > 0, err
	})
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return found, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	_, err := c.breaker.Execute(func() (bool, error) {
		return true, c.client.Set(ctx, key, presence, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// BreakerState reports the circuit breaker state (closed, half-open, open).
func (c *RedisCache) BreakerState() string {
	return c.breaker.State().String()
}

// Ping checks connectivity, bypassing the breaker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// NewRedisClient connects to the server named by cfg.URL and verifies it
// answers a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
