// Package cache stores computed analysis responses keyed by dataset version
// and request parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// ResultCache stores JSON-encodable results.
type ResultCache interface {
	// Get decodes the cached value into dest, or returns ErrMiss.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// Key derives a cache key from a prefix, a dataset version and any
// JSON-encodable request value.
func Key(prefix, version string, value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("smartbuy:%s:%s:%s", prefix, version, hex.EncodeToString(sum[:16])), nil
}

// RedisCache implements ResultCache on Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
	})
	return &RedisCache{client: client, ttl: ttl}
}

var _ ResultCache = (*RedisCache)(nil)

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return fmt.Errorf("failed to read cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// NopCache never stores anything.
type NopCache struct{}

var _ ResultCache = NopCache{}

func (NopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrMiss
}

func (NopCache) Set(ctx context.Context, key string, value interface{}) error {
	return nil
}
