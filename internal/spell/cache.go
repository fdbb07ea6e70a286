package spell

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Cache stores spell results keyed by lowercase word.
type Cache interface {
	Get(word string) (Result, bool)
	Put(word string, r Result)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMemoryCache creates an empty memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Result)}
}

// Get returns the cached result for word.
func (c *MemoryCache) Get(word string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[word]
	return r, ok
}

// Put stores r under word.
func (c *MemoryCache) Put(word string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[word] = r
}

// Len returns the number of cached words.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachedChecker serves repeated lookups from a cache. Only successful
// results are cached.
type CachedChecker struct {
	next  Checker
	cache Cache
}

// NewCachedChecker wraps next with cache.
func NewCachedChecker(next Checker, cache Cache) *CachedChecker {
	return &CachedChecker{next: next, cache: cache}
}

// Check returns the cached result for the lowercased word, asking the
// wrapped checker on a miss.
func (c *CachedChecker) Check(ctx context.Context, word string) (Result, error) {
	if word == "" {
		return Result{Suggestions: []string{}}, nil
	}

	key := strings.ToLower(word)
	if r, ok := c.cache.Get(key); ok {
		slog.Debug("spell cache hit", "word", key)
		return r, nil
	}

	r, err := c.next.Check(ctx, word)
	if err != nil {
		return Result{}, err
	}
	c.cache.Put(key, r)
	return r, nil
}
