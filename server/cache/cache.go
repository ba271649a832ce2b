package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON encoded values. A ttl of zero or less uses the cache
// default.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error

	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	Increment(ctx context.Context, key string) (int64, error)

	GetStats(ctx context.Context) (*CacheStats, error)

	Close() error
}

type CacheStats struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Items     int64  `json:"items"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Info      string `json:"info"`
}

// GenerateCacheKey hashes the components into a fixed length key.
func GenerateCacheKey(components ...string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(components, "\x00"))))
}
