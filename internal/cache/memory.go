package cache

import (
	"context"
	"sync"
	"time"

	"github.com/znapsite/platform/internal/clock"
)

type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

// MemoryCache is the in-process UsageCache backend. It is the default for
// single-node deployments and tests; Redis replaces it when configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clk     clock.Clock
}

func NewMemoryCache(clk clock.Clock) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		clk:     clk,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false, nil
	}
	if !c.clk.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return 0, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{
		value:     value,
		expiresAt: c.clk.Now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Incr(ctx context.Context, key string, delta int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !c.clk.Now().Before(entry.expiresAt) {
		// no-op on missing or expired keys; the ledger reseeds on the next miss
		return nil
	}
	entry.value += delta
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}
