package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// NewRedisCache connects to Redis and fails when the server does not
// answer a ping.
func NewRedisCache(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s:%d: %w", opts.Host, opts.Port, err)
	}

	logger.Info("Connected to Redis",
		zap.String("host", opts.Host),
		zap.Int("port", opts.Port),
		zap.Int("db", opts.DB))

	return NewRedisCacheWithClient(client, opts.TTL, opts.Prefix, logger), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	c.hits.Add(1)
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}

// Increment bumps a counter, setting the default expiry when the counter
// is created.
func (c *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	count, err := c.client.Incr(ctx, c.key(key)).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && c.ttl > 0 {
		if err := c.client.Expire(ctx, c.key(key), c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to set counter expiry", zap.String("key", key), zap.Error(err))
		}
	}
	return count, nil
}

func (c *RedisCache) GetStats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{
		Backend: "redis",
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		stats.Info = err.Error()
		return stats, nil
	}
	stats.Connected = true

	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis dbsize: %w", err)
	}
	stats.Items = size
	stats.Info = fmt.Sprintf("addr=%s,ttl=%v", c.client.Options().Addr, c.ttl)
	return stats, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
