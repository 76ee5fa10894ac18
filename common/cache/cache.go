package cache

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/lyzr/teststate/common/logger"
	"github.com/lyzr/teststate/common/metrics"
)

// DefaultTTL applies when Put is given a non-positive ttl.
const DefaultTTL = 24 * time.Hour

const cleanupInterval = time.Minute

const backendMemory = "memory"

// Cache maps a prompt fingerprint to retrieved LLM context for one tenant.
// A miss, including an expired entry, is found == false and never an error.
type Cache interface {
	Put(ctx context.Context, promptHash string, data map[string]any, ttl time.Duration) error
	Get(ctx context.Context, promptHash string) (map[string]any, bool, error)
}

// MemoryCache is an in-process Cache. Expired entries are never served and
// are swept periodically until Close.
type MemoryCache struct {
	data  map[string]*cacheEntry
	mu    sync.RWMutex
	log   *logger.Logger
	now   func() time.Time
	stop  chan struct{}
	close sync.Once
}

type cacheEntry struct {
	value     map[string]any
	createdAt time.Time
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache. A nil clock uses time.Now.
func NewMemoryCache(log *logger.Logger, clock func() time.Time) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	c := &MemoryCache{
		data: make(map[string]*cacheEntry),
		log:  log,
		now:  clock,
		stop: make(chan struct{}),
	}

	// Start cleanup goroutine
	go c.cleanup(cleanupInterval)

	return c
}

// Get retrieves cached context if it has not expired
func (c *MemoryCache) Get(_ context.Context, promptHash string) (map[string]any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[promptHash]
	if !exists || !entry.expiresAt.After(c.now()) {
		return nil, false, nil
	}

	return maps.Clone(entry.value), true, nil
}

// Put stores context with TTL, replacing any previous entry
func (c *MemoryCache) Put(_ context.Context, promptHash string, data map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if data == nil {
		data = map[string]any{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.data[promptHash]; !exists {
		metrics.AddCacheEntries(backendMemory, 1)
	}
	c.data[promptHash] = &cacheEntry{
		value:     maps.Clone(data),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}

	return nil
}

// Close stops the cleanup loop and drops all entries
func (c *MemoryCache) Close() error {
	c.close.Do(func() {
		close(c.stop)
		c.mu.Lock()
		metrics.AddCacheEntries(backendMemory, -len(c.data))
		c.data = make(map[string]*cacheEntry)
		c.mu.Unlock()
		c.log.Info("memory cache closed")
	})
	return nil
}

// cleanup removes expired entries periodically
func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if removed := c.sweep(); removed > 0 {
				c.log.Debug("swept expired context", "removed", removed, "remaining", c.Len())
			}
		}
	}
}

func (c *MemoryCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.data {
		if !entry.expiresAt.After(now) {
			delete(c.data, key)
			removed++
		}
	}
	metrics.AddCacheEntries(backendMemory, -removed)
	return removed
}

// Len reports the entries held, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
