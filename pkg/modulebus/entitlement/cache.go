package entitlement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a cached entitlement entry stays fresh.
const DefaultTTL = 2 * time.Minute

// DefaultMaxTenants bounds the number of tenants the cache retains.
const DefaultMaxTenants = 10000

// CacheConfig configures a Cache.
type CacheConfig struct {
	// TTL is how long an entry stays fresh.
	// Default: 2 minutes
	TTL time.Duration

	// MaxTenants bounds cached tenants; least recently used entries are
	// evicted beyond it.
	// Default: 10000
	MaxTenants int

	// Now supplies the clock, so tests can refresh deterministically
	// without wall-clock waits.
	// Default: time.Now
	Now func() time.Time
}

// DefaultCacheConfig provides reasonable defaults.
var DefaultCacheConfig = CacheConfig{
	TTL:        DefaultTTL,
	MaxTenants: DefaultMaxTenants,
}

// Entry is a cached entitlement snapshot for one tenant.
type Entry struct {
	Modules   ModuleSet
	FetchedAt time.Time
}

// Expired reports whether the entry is stale at the given instant.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) >= ttl
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	// Hits counts lookups served from a fresh entry.
	Hits int64
	// Misses counts lookups that found no fresh entry.
	Misses int64
	// Lookups counts calls actually issued to the source. Lower than
	// Misses under concurrent load because refreshes are deduplicated.
	Lookups int64
	// Evictions counts entries displaced by the MaxTenants bound. It does
	// not count Invalidate calls or TTL expiry.
	Evictions int64
}

// Cache is a TTL cache over a Source.
//
// Concurrent misses for the same tenant are collapsed into a single source
// call. Entries never outlive the TTL: an expired entry is refreshed
// synchronously on the next lookup, not served.
type Cache struct {
	src     Source
	ttl     time.Duration
	now     func() time.Time
	entries *lru.Cache[string, Entry]
	group   singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	lookups   atomic.Int64
	evictions atomic.Int64
}

// NewCache creates a cache over the given source.
func NewCache(src Source, cfg CacheConfig) (*Cache, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig.TTL
	}
	if cfg.MaxTenants <= 0 {
		cfg.MaxTenants = DefaultCacheConfig.MaxTenants
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	entries, err := lru.New[string, Entry](cfg.MaxTenants)
	if err != nil {
		return nil, fmt.Errorf("create entitlement cache: %w", err)
	}

	return &Cache{
		src:     src,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		entries: entries,
	}, nil
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// ActiveModules returns the tenant's active modules, refreshing from the
// source when the cached entry is missing or expired. The returned set is
// a copy; callers may mutate it freely.
func (c *Cache) ActiveModules(ctx context.Context, tenantID string) (ModuleSet, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	if entry, ok := c.entries.Get(tenantID); ok && !entry.Expired(c.now(), c.ttl) {
		c.hits.Add(1)
		return entry.Modules.Clone(), nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		// A concurrent caller may have refreshed while this one waited
		// to enter the flight.
		if entry, ok := c.entries.Get(tenantID); ok && !entry.Expired(c.now(), c.ttl) {
			return entry, nil
		}

		c.lookups.Add(1)
		modules, err := c.src.ActiveModules(ctx, tenantID)
		if err != nil {
			return Entry{}, fmt.Errorf("resolve active modules for tenant %s: %w", tenantID, err)
		}

		entry := Entry{Modules: modules.Clone(), FetchedAt: c.now()}
		if evicted := c.entries.Add(tenantID, entry); evicted {
			c.evictions.Add(1)
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(Entry).Modules.Clone(), nil
}

// Invalidate evicts one tenant's entry. Call it when a tenant's module
// purchases change so stale permissions cannot persist until TTL expiry.
func (c *Cache) Invalidate(tenantID string) {
	c.entries.Remove(tenantID)
}

// InvalidateAll evicts every entry.
func (c *Cache) InvalidateAll() {
	c.entries.Purge()
}

// Warm pre-fetches entitlements for the given tenants concurrently.
// Useful at startup before publish traffic arrives. The first source error
// cancels remaining fetches and is returned.
func (c *Cache) Warm(ctx context.Context, tenantIDs ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range tenantIDs {
		g.Go(func() error {
			_, err := c.ActiveModules(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// Len returns the number of cached tenants.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Lookups:   c.lookups.Load(),
		Evictions: c.evictions.Load(),
	}
}
