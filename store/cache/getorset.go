package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTypeMismatch is returned by GetOrSetAs when the cached value has another type.
	ErrTypeMismatch = errors.New("cached value has unexpected type")
	// ErrFetchPanic is returned to every waiter when a fetcher panics.
	ErrFetchPanic = errors.New("cache fetch panicked")
)

// Fetcher loads the value for a missing key, typically from the database (L3).
type Fetcher func(ctx context.Context) (any, error)

// flight is a running fetch. stale is set under the cache lock when the key is
// invalidated before the fetch lands.
type flight struct {
	key   string
	stale bool
}

// GetOrSet returns the cached value for key or loads it with fetch and stores it
// with the default TTL.
func (c *Cache) GetOrSet(ctx context.Context, key string, fetch Fetcher) (any, error) {
	return c.GetOrSetWithTTL(ctx, key, c.defaultTTL, fetch)
}

// GetOrSetWithTTL returns the cached value for key or loads it with fetch.
//
// At most one fetch per key is in flight: concurrent callers that miss on the same
// key wait for the running fetch and receive its result. The result is stored only
// when fetch succeeds; its error is returned unchanged to every waiter and nothing
// is cached. A panic in fetch is returned as ErrFetchPanic.
//
// Delete, InvalidatePattern and Clear cut a running fetch off: callers arriving
// afterwards start a new fetch, and the old one does not store its result.
//
// fetch runs detached from the cancellation of ctx, so a caller giving up returns
// ctx.Err() while the other waiters still get the value.
func (c *Cache) GetOrSetWithTTL(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(flightKey(gen, key), func() (any, error) {
		return c.load(detached, key, ttl, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	}
}

// flightKey scopes a flight to the invalidation generation it started in.
func flightKey(gen uint64, key string) string {
	return strconv.FormatUint(gen, 10) + "\x00" + key
}

// load runs fetch for one flight and stores the result unless the key was
// invalidated meanwhile.
func (c *Cache) load(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (value any, err error) {
	c.mu.Lock()
	// A flight that finished between our miss and DoChan may have filled the key.
	if e, ok := c.entries[key]; ok && !e.expired(time.Now()) {
		c.mu.Unlock()
		return e.value, nil
	}
	f := &flight{key: key}
	c.inflight[f] = struct{}{}
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache fetch panicked", "key", key, "panic", r)
			value, err = nil, errors.Wrapf(ErrFetchPanic, "key %s: %v", key, r)
		}

		c.mu.Lock()
		delete(c.inflight, f)
		var ev eviction
		if err == nil && !f.stale {
			ev = c.storeLocked(key, value, ttl)
		}
		c.mu.Unlock()

		c.notifyEviction(ev)
	}()

	return fetch(ctx)
}

// abandonFlightsLocked moves later callers to a new generation of flights and
// keeps running fetches for matched keys from storing. Must be called with lock
// held.
func (c *Cache) abandonFlightsLocked(match func(key string) bool) {
	c.gen++
	for f := range c.inflight {
		if match(f.key) {
			f.stale = true
		}
	}
}

// GetOrSetAs is the typed form of GetOrSetWithTTL.
func GetOrSetAs[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	value, err := c.GetOrSetWithTTL(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, errors.Wrapf(ErrTypeMismatch, "key %s holds %T", key, value)
	}
	return typed, nil
}
