package cache

import (
	"context"
	"time"
)

// cleanupLoop periodically removes expired entries.
func (c *Cache) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := c.CleanupExpired(now); removed > 0 {
				c.logger.Debug("swept expired cache entries", "removed", removed)
			}
		}
	}
}

// CleanupExpired removes all entries expired at now and returns how many were
// removed. OnEviction is not called for them.
func (c *Cache) CleanupExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			c.removeLocked(key)
			removed++
		}
	}
	c.expirations += int64(removed)
	return removed
}
