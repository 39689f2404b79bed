package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxItems is the capacity used when Config.MaxItems is not positive.
	DefaultMaxItems = 1000
	// DefaultTTL is the lifetime of entries written through Set and GetOrSet.
	DefaultTTL = 5 * time.Minute
)

// Config holds the configuration for a Cache.
type Config struct {
	MaxItems        int           // Maximum number of entries (default: 1000)
	DefaultTTL      time.Duration // TTL used by Set and GetOrSet (default: 5 minutes)
	CleanupInterval time.Duration // Sweep interval for expired entries, 0 disables the sweeper
	Policy          EvictionPolicy
	OnEviction      func(key string, value any)
	Logger          *slog.Logger

	// Deployment hints, only used for the startup warning.
	Production      bool
	Instances       int
	SharedCacheAddr string
}

// Cache is a process-local key/value cache with per-entry expiration and a bounded
// number of entries. Expired entries are removed lazily on read and, when configured,
// by a background sweeper.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	policy  EvictionPolicy

	maxItems   int
	defaultTTL time.Duration
	onEviction func(key string, value any)
	logger     *slog.Logger

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	flights  singleflight.Group
	gen      uint64
	inflight map[*flight]struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type entry struct {
	value     any
	expiresAt time.Time
}

// expired reports whether the entry is absent at now. An entry stored with a
// non-positive TTL is expired immediately.
func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// New creates a cache. It never returns nil.
func New(cfg Config) *Cache {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Policy == nil {
		cfg.Policy = NewFIFOPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Cache{
		entries:    make(map[string]*entry),
		inflight:   make(map[*flight]struct{}),
		policy:     cfg.Policy,
		maxItems:   cfg.MaxItems,
		defaultTTL: cfg.DefaultTTL,
		onEviction: cfg.OnEviction,
		logger:     cfg.Logger,
	}

	if cfg.Production && cfg.Instances > 1 && cfg.SharedCacheAddr == "" {
		c.logger.Warn("in-memory cache is not shared across instances, entries may be stale on other replicas",
			"instances", cfg.Instances,
			"policy", c.policy.Name(),
		)
	}

	if cfg.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.cleanupLoop(ctx, cfg.CleanupInterval)
	}

	return c
}

// Close stops the background sweeper. The cache stays usable afterwards.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()
	})
	return nil
}

// Get returns the value stored for key. An expired entry counts as a miss and is
// removed.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(now) {
		c.removeLocked(key)
		c.expirations++
		c.misses++
		return nil, false
	}

	c.policy.OnAccess(key)
	c.hits++
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key. A ttl <= 0 stores an entry that is already
// expired. When the cache is full and key is new, one entry chosen by the eviction
// policy is displaced and OnEviction is called with it before SetWithTTL returns.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	ev := c.storeLocked(key, value, ttl)
	c.mu.Unlock()

	c.notifyEviction(ev)
}

type eviction struct {
	key     string
	value   any
	evicted bool
}

// storeLocked inserts or overwrites key. Must be called with lock held.
func (c *Cache) storeLocked(key string, value any, ttl time.Duration) eviction {
	expiresAt := time.Now().Add(ttl)

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.policy.OnUpdate(key)
		return eviction{}
	}

	var ev eviction
	if len(c.entries) >= c.maxItems {
		ev.key, ev.value, ev.evicted = c.evictLocked()
	}

	c.entries[key] = &entry{value: value, expiresAt: expiresAt}
	c.policy.OnInsert(key)
	return ev
}

// notifyEviction runs OnEviction outside the lock so the callback may use the cache.
func (c *Cache) notifyEviction(ev eviction) {
	if !ev.evicted {
		return
	}
	c.logger.Debug("cache entry evicted", "key", ev.key, "policy", c.policy.Name())
	if c.onEviction != nil {
		c.onEviction(ev.key, ev.value)
	}
}

// Delete removes key regardless of its expiration. It reports whether an entry was
// present. A GetOrSet fetch running for key will not store its result.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abandonFlightsLocked(func(k string) bool { return k == key })
	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear removes every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abandonFlightsLocked(func(string) bool { return true })
	c.entries = make(map[string]*entry)
	c.policy.Reset()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.expirations = 0
}

// Size returns the number of stored entries, including expired entries that have
// not been read or swept yet.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in eviction order, next victim first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.Keys()
}

// evictLocked displaces the policy victim. Must be called with lock held.
func (c *Cache) evictLocked() (string, any, bool) {
	key, ok := c.policy.Victim()
	if !ok {
		return "", nil, false
	}
	e := c.entries[key]
	c.removeLocked(key)
	c.evictions++
	if e == nil {
		return key, nil, true
	}
	return key, e.value, true
}

// removeLocked drops key from the map and the policy. Must be called with lock held.
func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	c.policy.OnRemove(key)
}
