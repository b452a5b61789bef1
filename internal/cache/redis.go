package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces Kestrel entries on a shared Redis instance.
const keyPrefix = "kestrel:"

// RedisCache backs the cache with Redis, for multi-node deployments and
// as the L2 tier of the two-phase cache.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// Get returns the value for key, or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores the value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// GetState returns the cached occupancy snapshot, or nil on a miss.
func (c *RedisCache) GetState(ctx context.Context) (*domain.StateSnapshot, error) {
	data, err := c.Get(ctx, stateKey)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

// SetState caches the occupancy snapshot for ttl.
func (c *RedisCache) SetState(ctx context.Context, snapshot *domain.StateSnapshot, ttl time.Duration) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return c.Set(ctx, stateKey, data, ttl)
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
