package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU plus Redis as L2.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetState retrieves the cached occupancy snapshot, nil if absent.
	GetState(ctx context.Context) (*StateSnapshot, error)

	// SetState caches the occupancy snapshot so status queries do not hit
	// the remote source on every call.
	SetState(ctx context.Context, snapshot *StateSnapshot, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `yaml:"type" json:"type"`

	// Local LRU cache settings
	LocalMaxSize int           `yaml:"localMaxSize" json:"localMaxSize"`
	LocalTTL     time.Duration `yaml:"localTtl" json:"localTtl"`

	// Redis settings
	RedisAddr     string `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword string `yaml:"redisPassword" json:"-"`
	RedisDB       int    `yaml:"redisDb" json:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `yaml:"enableTwoPhase" json:"enableTwoPhase"` // If true, check local first, then Redis
}
