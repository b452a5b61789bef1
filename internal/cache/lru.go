// Package cache provides the snapshot and report caches.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-access/kestrel/internal/domain"
)

// stateKey holds the remote occupancy snapshot.
const stateKey = "state:occupancy"

// LRUCache is an in-process LRU with per-entry TTL. It is the default
// cache and the L1 tier of the two-phase cache.
type LRUCache struct {
	mu      sync.RWMutex
	maxSize int
	index   map[string]*list.Element
	recency *list.List
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates an LRU cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize: maxSize,
		index:   make(map[string]*list.Element),
		recency: list.New(),
	}
}

// Get returns the value for key, or nil on a miss. Expired entries are
// removed on access.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, nil
	}
	entry := elem.Value.(*lruEntry)
	if time.Now().After(entry.expiresAt) {
		c.evict(elem)
		return nil, nil
	}
	c.recency.MoveToFront(elem)
	return entry.value, nil
}

// Set stores the value under key for ttl, evicting the least recently
// used entries when over capacity.
func (c *LRUCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.recency.MoveToFront(elem)
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return nil
	}

	c.index[key] = c.recency.PushFront(&lruEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	for c.recency.Len() > c.maxSize {
		if back := c.recency.Back(); back != nil {
			c.evict(back)
		}
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *LRUCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.evict(elem)
	}
	return nil
}

// GetState returns the cached occupancy snapshot, or nil on a miss.
func (c *LRUCache) GetState(ctx context.Context) (*domain.StateSnapshot, error) {
	data, err := c.Get(ctx, stateKey)
	if err != nil || data == nil {
		return nil, err
	}
	return decodeSnapshot(data)
}

// SetState caches the occupancy snapshot for ttl.
func (c *LRUCache) SetState(ctx context.Context, snapshot *domain.StateSnapshot, ttl time.Duration) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return c.Set(ctx, stateKey, data, ttl)
}

// Ping always succeeds for the in-process cache.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close drops every entry.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element)
	c.recency = list.New()
	return nil
}

// Stats returns the current entry count and the configured capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recency.Len(), c.maxSize
}

func (c *LRUCache) evict(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.index, elem.Value.(*lruEntry).key)
}
