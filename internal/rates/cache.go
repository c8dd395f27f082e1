package rates

type cacheKey struct {
	segment string
	flow    string
}

// Cache memoizes base rates per (segment, flow) for one configuration
// revision. Seasonal and distribution adjustments are never cached.
type Cache struct {
	revision string
	rates    map[cacheKey]float64
	hits     int
	misses   int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{rates: make(map[cacheKey]float64)}
}

// Reset drops every cached rate and the hit counters.
func (c *Cache) Reset() {
	c.rates = make(map[cacheKey]float64)
	c.hits, c.misses = 0, 0
}

// Bind ties the cache to revision, resetting it if the revision changed.
// It reports whether a reset happened.
func (c *Cache) Bind(revision string) bool {
	if revision == c.revision {
		return false
	}
	c.revision = revision
	c.Reset()
	return true
}

// Revision returns the configuration revision the cache is bound to.
func (c *Cache) Revision() string { return c.revision }

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.rates) }

// Stats returns hit and miss counts since the last reset.
func (c *Cache) Stats() (hits, misses int) { return c.hits, c.misses }

func (c *Cache) get(segment, flow string) (float64, bool) {
	v, ok := c.rates[cacheKey{segment, flow}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Cache) put(segment, flow string, rate float64) {
	c.rates[cacheKey{segment, flow}] = rate
}
