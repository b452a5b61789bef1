package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// New builds the configured cache. "memory" is the local LRU; "redis"
// is Redis alone, or LRU in front of Redis when two-phase is enabled.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

func encodeSnapshot(s *domain.StateSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSnapshot(data []byte) (*domain.StateSnapshot, error) {
	var snapshot domain.StateSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// TwoPhaseCache reads through a local LRU (L1) into Redis (L2). L1 hits
// spare the network; L2 hits refill L1 with a bounded TTL.
type TwoPhaseCache struct {
	local  *LRUCache
	remote *RedisCache
	l1TTL  time.Duration
}

// NewTwoPhaseCache builds the LRU-over-Redis pair.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	l1TTL := cfg.LocalTTL
	if l1TTL == 0 {
		l1TTL = 5 * time.Minute
	}
	return &TwoPhaseCache{
		local:  NewLRUCache(cfg.LocalMaxSize),
		remote: remote,
		l1TTL:  l1TTL,
	}, nil
}

// localTTL caps the L1 lifetime at the caller's TTL.
func (c *TwoPhaseCache) localTTL(ttl time.Duration) time.Duration {
	if ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

// Get reads L1 first, then L2, refilling L1 on an L2 hit.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, key)
	if err != nil || val != nil {
		return val, err
	}

	val, err = c.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, key, val, c.l1TTL)
	}
	return val, nil
}

// Set writes both tiers.
func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.Set(ctx, key, value, ttl)
}

// Delete removes key from both tiers.
func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}

// GetState reads the snapshot through L1 into L2.
func (c *TwoPhaseCache) GetState(ctx context.Context) (*domain.StateSnapshot, error) {
	snapshot, err := c.local.GetState(ctx)
	if err != nil || snapshot != nil {
		return snapshot, err
	}

	snapshot, err = c.remote.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		_ = c.local.SetState(ctx, snapshot, c.l1TTL)
	}
	return snapshot, nil
}

// SetState caches the snapshot in both tiers.
func (c *TwoPhaseCache) SetState(ctx context.Context, snapshot *domain.StateSnapshot, ttl time.Duration) error {
	if err := c.local.SetState(ctx, snapshot, c.localTTL(ttl)); err != nil {
		return err
	}
	return c.remote.SetState(ctx, snapshot, ttl)
}

// Ping checks both tiers.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both tiers.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats reports the L1 tier.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
