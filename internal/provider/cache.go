package provider

import (
	"sort"
	"strings"
	"sync"

	"oatty/internal/api"
)

// buildCacheKey derives the cache key of spec section 3: the provider
// reference and the bound input map (sorted for determinism); the typed
// prefix is not part of the key. Provider results are prefix-independent — filtering happens
// locally in rank() — so every caller of a given provider+binds combination
// shares one cache entry regardless of what the user has typed so far.
func buildCacheKey(providerRef string, bound map[string]string) string {
	keys := make([]string, 0, len(bound))
	for k := range bound {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(providerRef)
	for _, k := range keys {
		b.WriteByte('\x00')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(bound[k])
	}
	return b.String()
}

// cacheStore holds provider cache entries and the per-key last fetch error,
// guarded by a single mutex since entries are small and mutations brief.
type cacheStore struct {
	mu      sync.RWMutex
	entries map[string]*api.CacheEntry
	errs    map[string]error
}

func newCacheStore() *cacheStore {
	return &cacheStore{
		entries: make(map[string]*api.CacheEntry),
		errs:    make(map[string]error),
	}
}

func (c *cacheStore) get(key string) (*api.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *cacheStore) put(key string, entry *api.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	delete(c.errs, key)
}

func (c *cacheStore) recordError(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[key] = err
}

func (c *cacheStore) lastError(key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errs[key]
}
