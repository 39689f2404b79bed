package cache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp/syntax"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	Price int
}

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// peek reads key without touching statistics or eviction order.
func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

func TestCache_BasicOperations(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 100})

	t.Run("SetAndGet", func(t *testing.T) {
		c.Set("key1", "value1")

		val, ok := c.Get("key1")
		assert.True(t, ok)
		assert.Equal(t, "value1", val)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		val, ok := c.Get("nonexistent")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		c.Set("key2", "original")
		c.Set("key2", "updated")

		val, ok := c.Get("key2")
		assert.True(t, ok)
		assert.Equal(t, "updated", val)
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set("key3", 3)

		assert.True(t, c.Delete("key3"))
		assert.False(t, c.Delete("key3"))

		_, ok := c.Get("key3")
		assert.False(t, ok)
	})

	t.Run("DeleteIgnoresExpiration", func(t *testing.T) {
		c.SetWithTTL("stale", 1, -time.Second)
		assert.True(t, c.Delete("stale"))
	})
}

func TestCache_Expiration(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 10})

	c.SetWithTTL("product:1", product{Price: 10}, 50*time.Millisecond)

	val, ok := c.Get("product:1")
	require.True(t, ok)
	assert.Equal(t, product{Price: 10}, val)
	assert.Equal(t, int64(1), c.Stats().Hits)

	time.Sleep(80 * time.Millisecond)

	val, ok = c.Get("product:1")
	assert.False(t, ok)
	assert.Nil(t, val)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Expirations)
	assert.Equal(t, 0, c.Size())
}

func TestCache_ExpirationScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past a one second TTL")
	}
	c := newTestCache(t, Config{})

	c.SetWithTTL("product:1", map[string]int{"price": 10}, time.Second)

	val, ok := c.Get("product:1")
	require.True(t, ok)
	assert.Equal(t, map[string]int{"price": 10}, val)
	assert.Equal(t, int64(1), c.Stats().Hits)

	time.Sleep(1100 * time.Millisecond)

	_, ok = c.Get("product:1")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
	assert.Equal(t, 0, c.Size())
}

func TestCache_NonPositiveTTLIsExpired(t *testing.T) {
	c := newTestCache(t, Config{})

	for _, ttl := range []time.Duration{0, -time.Minute} {
		t.Run(ttl.String(), func(t *testing.T) {
			c.SetWithTTL("k", "v", ttl)
			assert.Equal(t, 1, c.Size())

			_, ok := c.Get("k")
			assert.False(t, ok)
			assert.Equal(t, 0, c.Size())
		})
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	c := newTestCache(t, Config{DefaultTTL: 30 * time.Millisecond})

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCache_FIFOEviction(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "a should be evicted")

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_FIFOIgnoresReads(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 2})

	c.Set("a", 1)
	c.Set("b", 2)

	// Reading a does not protect it under FIFO.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCache_FIFOOverwriteCountsAsFreshInsert(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	assert.Equal(t, []string{"b", "a"}, c.Keys())

	c.Set("c", 3)
	_, ok := c.Get("b")
	assert.False(t, ok)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestCache_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	var evicted []string
	c := newTestCache(t, Config{
		MaxItems:   2,
		OnEviction: func(key string, _ any) { evicted = append(evicted, key) },
	})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("b", 20)

	assert.Empty(t, evicted)
	assert.Equal(t, 2, c.Size())
}

func TestCache_CapacityBound(t *testing.T) {
	const maxItems = 5
	c := newTestCache(t, Config{MaxItems: maxItems})

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
		require.LessOrEqual(t, c.Size(), maxItems)

		if i >= maxItems {
			// The survivors are always the most recent insertions.
			want := make([]string, 0, maxItems)
			for j := i - maxItems + 1; j <= i; j++ {
				want = append(want, fmt.Sprintf("key%d", j))
			}
			require.Equal(t, want, c.Keys())
		}
	}
}

func TestCache_OnEviction(t *testing.T) {
	type evictedEntry struct {
		key   string
		value any
	}
	var got []evictedEntry

	c := newTestCache(t, Config{
		MaxItems: 1,
		OnEviction: func(key string, value any) {
			got = append(got, evictedEntry{key: key, value: value})
		},
	})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("b")
	c.SetWithTTL("c", 3, -time.Second)
	c.Get("c")

	require.Len(t, got, 1, "only capacity pressure triggers the callback")
	assert.Equal(t, evictedEntry{key: "a", value: 1}, got[0])
}

func TestCache_OnEvictionMayUseCache(t *testing.T) {
	var c *Cache
	c = newTestCache(t, Config{
		MaxItems: 1,
		OnEviction: func(key string, _ any) {
			// Runs outside the lock.
			c.Stats()
		},
	})

	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_HitMissAccounting(t *testing.T) {
	c := newTestCache(t, Config{})
	c.Set("present", 1)

	before := c.Stats()
	c.Get("present")
	after := c.Stats()
	assert.Equal(t, before.Hits+1, after.Hits)
	assert.Equal(t, before.Misses, after.Misses)

	before = after
	c.Get("absent")
	after = c.Stats()
	assert.Equal(t, before.Hits, after.Hits)
	assert.Equal(t, before.Misses+1, after.Misses)

	c.SetWithTTL("expired", 1, 0)
	before = after
	c.Get("expired")
	after = c.Stats()
	assert.Equal(t, before.Hits, after.Hits)
	assert.Equal(t, before.Misses+1, after.Misses)
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 10})

	stats := c.Stats()
	assert.Equal(t, "0%", stats.HitRate)
	assert.Equal(t, 10, stats.MaxItems)
	assert.Equal(t, PolicyFIFO, stats.Policy)

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Get("a")

	stats = c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, "66.67%", stats.HitRate)
	assert.Contains(t, c.String(), "hit_rate=66.67%")
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 1})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("b")
	c.Get("a")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Evictions)
	assert.Equal(t, "0%", stats.HitRate)
	assert.Empty(t, c.Keys())

	c.Set("c", 3)
	assert.Equal(t, []string{"c"}, c.Keys())
}

func TestCache_InvalidatePattern(t *testing.T) {
	c := newTestCache(t, Config{})

	t.Run("AnchoredPrefix", func(t *testing.T) {
		c.Clear()
		c.Set("user:1:profile", 1)
		c.Set("user:1:settings", 2)
		c.Set("user:2:profile", 3)

		count, err := c.InvalidatePattern("^user:1:")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		_, ok := c.Get("user:1:profile")
		assert.False(t, ok)
		_, ok = c.Get("user:2:profile")
		assert.True(t, ok)
	})

	t.Run("Unanchored", func(t *testing.T) {
		c.Clear()
		c.Set("user:1:profile", 1)
		c.Set("superuser:1:profile", 2)
		c.Set("user:2:profile", 3)

		count, err := c.InvalidatePattern("user:1:")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, []string{"user:2:profile"}, c.Keys())
	})

	t.Run("NoMatch", func(t *testing.T) {
		c.Clear()
		c.Set("a", 1)

		count, err := c.InvalidatePattern("^b")
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("InvalidPattern", func(t *testing.T) {
		c.Clear()
		c.Set("a", 1)

		count, err := c.InvalidatePattern("user:(")
		require.Error(t, err)
		assert.Zero(t, count)
		assert.True(t, errors.Is(err, ErrInvalidPattern))

		var syntaxErr *syntax.Error
		assert.True(t, errors.As(err, &syntaxErr))
		assert.Equal(t, 1, c.Size())
	})
}

func TestCache_KeyHelpers(t *testing.T) {
	assert.Equal(t, "user:42:profile", UserKey(42, "profile"))
	assert.Equal(t, "product:7", ProductKey(7))
	assert.Equal(t, "product:slug:red-hat", ProductSlugKey("red-hat"))
	assert.Equal(t, "products:all", AllProductsKey())
}

func TestCache_InvalidateUser(t *testing.T) {
	c := newTestCache(t, Config{})
	c.Set(UserKey(42, "profile"), "X")
	c.Set(UserKey(7, "profile"), "Y")
	c.Set(UserKey(420, "profile"), "Z")

	assert.Equal(t, 1, c.InvalidateUser(42))

	_, ok := c.Get(UserKey(42, "profile"))
	assert.False(t, ok)
	_, ok = c.Get(UserKey(7, "profile"))
	assert.True(t, ok)
	_, ok = c.Get(UserKey(420, "profile"))
	assert.True(t, ok)
}

func TestCache_InvalidateProducts(t *testing.T) {
	c := newTestCache(t, Config{})
	c.Set(ProductKey(1), 1)
	c.Set(ProductSlugKey("hat"), 2)
	c.Set(AllProductsKey(), []int{1})
	c.Set(UserKey(1, "cart"), 3)

	assert.Equal(t, 2, c.InvalidateProducts())
	assert.ElementsMatch(t, []string{AllProductsKey(), UserKey(1, "cart")}, c.Keys())
}

func TestCache_ProductionWarning(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantWarn bool
	}{
		{"dev", Config{Instances: 3}, false},
		{"single instance", Config{Production: true, Instances: 1}, false},
		{"shared cache configured", Config{Production: true, Instances: 3, SharedCacheAddr: "redis:6379"}, false},
		{"multi instance without shared cache", Config{Production: true, Instances: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			newTestCache(t, tt.cfg)

			if tt.wantWarn {
				assert.Contains(t, buf.String(), "not shared across instances")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t, Config{MaxItems: 10})
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("key%d", n%26), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(fmt.Sprintf("key%d", n%26))
		}(i)
	}

	wg.Wait()
	assert.LessOrEqual(t, c.Size(), 10)
	stats := c.Stats()
	assert.Equal(t, int64(100), stats.Hits+stats.Misses)
}

func TestCache_CleanupLoop(t *testing.T) {
	c := newTestCache(t, Config{CleanupInterval: 10 * time.Millisecond})

	c.SetWithTTL("ttl", "v", 20*time.Millisecond)
	c.Set("live", "v")

	assert.Eventually(t, func() bool {
		return c.Size() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"live"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Expirations)
	assert.Zero(t, c.Stats().Misses, "sweeping is not a lookup")
}

func TestCache_CleanupExpired(t *testing.T) {
	c := newTestCache(t, Config{})
	c.SetWithTTL("a", 1, time.Minute)
	c.SetWithTTL("b", 2, time.Hour)

	assert.Zero(t, c.CleanupExpired(time.Now()))
	assert.Equal(t, 1, c.CleanupExpired(time.Now().Add(2*time.Minute)))
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New(Config{CleanupInterval: time.Millisecond})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_GetOrSet(t *testing.T) {
	ctx := context.Background()

	t.Run("FetchesOnMissAndCaches", func(t *testing.T) {
		c := newTestCache(t, Config{})
		var calls atomic.Int32
		fetch := func(context.Context) (any, error) {
			calls.Add(1)
			return "value", nil
		}

		for i := 0; i < 3; i++ {
			v, err := c.GetOrSet(ctx, "k", fetch)
			require.NoError(t, err)
			assert.Equal(t, "value", v)
		}
		assert.Equal(t, int32(1), calls.Load())

		stats := c.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("RefetchesAfterExpiry", func(t *testing.T) {
		c := newTestCache(t, Config{})
		var calls atomic.Int32
		fetch := func(context.Context) (any, error) {
			return calls.Add(1), nil
		}

		v, err := c.GetOrSetWithTTL(ctx, "k", 20*time.Millisecond, fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)

		time.Sleep(40 * time.Millisecond)

		v, err = c.GetOrSetWithTTL(ctx, "k", 20*time.Millisecond, fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(2), v)
	})

	t.Run("FailedFetchIsNotCached", func(t *testing.T) {
		c := newTestCache(t, Config{})
		fetchErr := errors.New("database unavailable")

		v, err := c.GetOrSet(ctx, "k", func(context.Context) (any, error) {
			return "partial", fetchErr
		})
		assert.Same(t, fetchErr, err)
		assert.Nil(t, v)
		assert.Equal(t, 0, c.Size())

		// The failed flight is cleared, the next call fetches again.
		v, err = c.GetOrSet(ctx, "k", func(context.Context) (any, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("CachesNilValue", func(t *testing.T) {
		c := newTestCache(t, Config{})
		var calls atomic.Int32
		fetch := func(context.Context) (any, error) {
			calls.Add(1)
			return nil, nil
		}

		_, err := c.GetOrSet(ctx, "missing", fetch)
		require.NoError(t, err)
		_, err = c.GetOrSet(ctx, "missing", fetch)
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestCache_GetOrSetCoalescesConcurrentMisses(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	const callers = 20
	results := make([]any, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrSet(ctx, "hot", fetch)
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestCache_GetOrSetSharesFailure(t *testing.T) {
	c := newTestCache(t, Config{})
	ctx := context.Background()
	fetchErr := errors.New("upstream timeout")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil, fetchErr
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrSet(ctx, "k", fetch)
		}(i)
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, errors.Is(err, fetchErr))
	}
	assert.Equal(t, 0, c.Size())
}

func TestCache_GetOrSetCanceledWaiter(t *testing.T) {
	c := newTestCache(t, Config{})

	release := make(chan struct{})
	fetched := make(chan error, 1)
	fetch := func(ctx context.Context) (any, error) {
		<-release
		fetched <- ctx.Err()
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrSet(ctx, "k", fetch)
		done <- err
	}()

	// Give the goroutine time to start the flight, then abandon it.
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.NoError(t, <-fetched, "the shared fetch is not canceled")

	assert.Eventually(t, func() bool {
		v, ok := c.peek("k")
		return ok && v == "late"
	}, time.Second, 5*time.Millisecond)
}

func TestCache_GetOrSetAfterInvalidation(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(c *Cache)
	}{
		{"pattern", func(c *Cache) { c.InvalidateProducts() }},
		{"delete", func(c *Cache) { c.Delete(ProductKey(1)) }},
		{"clear", func(c *Cache) { c.Clear() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := newTestCache(t, Config{})

			var (
				mu     sync.Mutex
				source = "old"
				calls  atomic.Int32
			)
			started := make(chan struct{})
			release := make(chan struct{})
			fetch := func(context.Context) (any, error) {
				mu.Lock()
				value := source
				mu.Unlock()
				if calls.Add(1) == 1 {
					close(started)
					<-release
				}
				return value, nil
			}

			first := make(chan any, 1)
			go func() {
				value, err := c.GetOrSet(ctx, ProductKey(1), fetch)
				assert.NoError(t, err)
				first <- value
			}()
			<-started

			// Write the source of truth, then invalidate, while the first fetch still runs.
			mu.Lock()
			source = "new"
			mu.Unlock()
			tt.invalidate(c)

			value, err := c.GetOrSet(ctx, ProductKey(1), fetch)
			require.NoError(t, err)
			assert.Equal(t, "new", value, "a read after invalidation starts a new fetch")

			close(release)
			assert.Equal(t, "old", <-first, "the waiter that came before the write keeps its result")

			cached, ok := c.peek(ProductKey(1))
			require.True(t, ok)
			assert.Equal(t, "new", cached, "the superseded fetch must not overwrite the entry")
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestCache_GetOrSetUnrelatedInvalidationStillStores(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrSet(ctx, UserKey(1, "preferences"), func(context.Context) (any, error) {
			close(started)
			<-release
			return "prefs", nil
		})
		done <- err
	}()
	<-started

	c.InvalidateProducts()
	close(release)
	require.NoError(t, <-done)

	cached, ok := c.peek(UserKey(1, "preferences"))
	require.True(t, ok)
	assert.Equal(t, "prefs", cached)
}

func TestCache_GetOrSetRecoversPanic(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{Logger: slog.New(slog.DiscardHandler)})

	const waiters = 5
	release := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.GetOrSet(ctx, "k", func(context.Context) (any, error) {
				<-release
				var p *product
				return p.Price, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrFetchPanic)
		assert.Contains(t, err.Error(), "nil pointer dereference")
	}
	assert.Equal(t, 0, c.Size(), "a panicking fetch caches nothing")

	value, err := c.GetOrSet(ctx, "k", func(context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", value)
}

func TestGetOrSetAs(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, Config{})

	p, err := GetOrSetAs(ctx, c, ProductKey(1), time.Minute, func(context.Context) (*product, error) {
		return &product{Price: 10}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Price)

	cached, err := GetOrSetAs(ctx, c, ProductKey(1), time.Minute, func(context.Context) (*product, error) {
		t.Error("fetch must not run on hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Same(t, p, cached)

	t.Run("NilResult", func(t *testing.T) {
		p, err := GetOrSetAs(ctx, c, ProductKey(2), time.Minute, func(context.Context) (*product, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		c.Set("n", 1)
		_, err := GetOrSetAs(ctx, c, "n", time.Minute, func(context.Context) (string, error) {
			return "x", nil
		})
		assert.True(t, errors.Is(err, ErrTypeMismatch))
	})
}
