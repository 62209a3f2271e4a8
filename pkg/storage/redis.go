package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// RedisClient defines the subset of Redis operations used by RedisStorage.
// This interface is compatible with github.com/redis/go-redis/v9 through a
// thin adapter.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// This should match redis.Nil from go-redis.
var ErrRedisNil = errors.New("redis: nil")

// RedisStorage is a Redis-backed backend.
// It's suitable for sharing persisted state across processes.
type RedisStorage struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisStorageOption configures RedisStorage behavior.
type RedisStorageOption func(*redisStorageConfig)

type redisStorageConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix for entries.
// Default: "vstore:".
func WithRedisPrefix(prefix string) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL sets an expiration for entries. Zero keeps them forever.
// Default: 0.
func WithRedisTTL(ttl time.Duration) RedisStorageOption {
	return func(c *redisStorageConfig) {
		c.ttl = ttl
	}
}

// NewRedisStorage creates a new Redis-backed backend.
func NewRedisStorage(client RedisClient, opts ...RedisStorageOption) *RedisStorage {
	cfg := &redisStorageConfig{
		prefix: "vstore:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStorage{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

// key returns the Redis key for an entry name.
func (r *RedisStorage) key(name string) string {
	return r.prefix + name
}

// Save stores the entry.
func (r *RedisStorage) Save(ctx context.Context, name string, data []byte) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.client.Set(ctx, r.key(name), data, r.ttl).Err()
}

// Load retrieves the entry if it exists.
func (r *RedisStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	data, err := r.client.Get(ctx, r.key(name)).Bytes()
	if err != nil {
		// go-redis returns its own sentinel, compare by message.
		if errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error() {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Remove deletes the entry.
func (r *RedisStorage) Remove(ctx context.Context, name string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.client.Del(ctx, r.key(name)).Err()
}

// Close marks the backend as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisStorage) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the current key prefix.
func (r *RedisStorage) Prefix() string {
	return r.prefix
}
