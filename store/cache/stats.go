package cache

import "fmt"

// Stats represents cache statistics.
type Stats struct {
	Size        int    `json:"size"`
	MaxItems    int    `json:"max_items"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	HitRate     string `json:"hit_rate"`
	Evictions   int64  `json:"evictions"`
	Expirations int64  `json:"expirations"`
	Policy      string `json:"policy"`
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:        len(c.entries),
		MaxItems:    c.maxItems,
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     formatHitRate(c.hits, c.misses),
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Policy:      c.policy.Name(),
	}
}

func formatHitRate(hits, misses int64) string {
	total := hits + misses
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(hits)/float64(total)*100)
}

// String returns a string representation of the cache.
func (c *Cache) String() string {
	s := c.Stats()
	return fmt.Sprintf("Cache{policy=%s, size=%d/%d, hits=%d, misses=%d, hit_rate=%s}",
		s.Policy, s.Size, s.MaxItems, s.Hits, s.Misses, s.HitRate)
}
