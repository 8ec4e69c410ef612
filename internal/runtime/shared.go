package runtime

import "sync"

// SharedCache is the run-scoped cache of arbitrary objects keyed by
// string (§4.7, §5: "cache is behind an async read-write lock; cacheable
// entries are read-heavy").
type SharedCache struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewSharedCache creates an empty cache.
func NewSharedCache() *SharedCache {
	return &SharedCache{data: make(map[string]any)}
}

// Get reads a cached value.
func (c *SharedCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Set stores a cached value.
func (c *SharedCache) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Reset clears every entry (used by InternalRun.Fork).
func (c *SharedCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
}

// SharedCredentials is an optional, opaque bag of trusted credential
// material (§6 "SharedCredentials (optional)").
type SharedCredentials struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSharedCredentials creates an empty credential bag.
func NewSharedCredentials() *SharedCredentials {
	return &SharedCredentials{values: make(map[string]string)}
}

// Get reads a credential value.
func (s *SharedCredentials) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a credential value.
func (s *SharedCredentials) Set(key, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Profile describes allowed models/bits and their ranking (§6).
type Profile struct {
	Name           string
	AllowedModels  []string
	Ranking        map[string]int
}
