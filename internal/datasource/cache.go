package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// DefaultCacheTTL is how long fetched attributes stay fresh.
const DefaultCacheTTL = 5 * time.Minute

// CachingSource wraps another source with a per-subject in-memory TTL
// cache. Empty results ("nothing known") are cached too, so an absent
// profile does not hammer the backing source. Errors are never cached.
type CachingSource struct {
	source service.ProfileSource
	ttl    time.Duration
	clock  clock.Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	attrs     claims.Claims
	expiresAt time.Time
}

// CachingSourceConfig configures a caching source
type CachingSourceConfig struct {
	// Source is the backing source (required)
	Source service.ProfileSource

	// TTL for cached entries (defaults to DefaultCacheTTL)
	TTL time.Duration

	// Clock for expiry decisions (defaults to system clock)
	Clock clock.Clock
}

// NewCachingSource creates a caching decorator around cfg.Source
func NewCachingSource(cfg CachingSourceConfig) *CachingSource {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &CachingSource{
		source:  cfg.Source,
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch implements service.ProfileSource
func (c *CachingSource) Fetch(ctx context.Context, subject string) (claims.Claims, error) {
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[subject]
	c.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.attrs.Copy(), nil
	}

	attrs, err := c.source.Fetch(ctx, subject)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[subject] = cacheEntry{attrs: attrs.Copy(), expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	return attrs, nil
}

// Cleanup removes expired entries and returns how many were dropped.
// Callers may run it periodically to bound memory.
func (c *CachingSource) Cleanup() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for subject, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, subject)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached entries, expired or not
func (c *CachingSource) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
