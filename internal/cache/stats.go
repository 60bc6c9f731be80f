package cache

// Stats is a best-effort snapshot of cache activity.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Refreshes int64   `json:"refreshes"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

// Stats returns the current counters. Entries includes expired entries that
// have not been read or swept yet.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Refreshes: c.refreshes.Load(),
		Entries:   n,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
