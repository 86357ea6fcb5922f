package media

import (
	"fmt"
	"sync"

	"github.com/iplanwebsites/repomd/pkg/types"
)

// cacheKey identifies one variant: input hash + output width + format.
func cacheKey(hash types.Hash, width int, format string) string {
	return fmt.Sprintf("%s:%d:%s", hash, width, format)
}

type cacheEntry struct {
	variant types.Variant

	// src is an absolute path to an existing copy of the file from a
	// previous build. Empty when the file was written into the current
	// staging directory by this run.
	src string
}

// Cache tracks variants that already exist, within the current run and from
// the previously published output. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Prime records a variant from a previous build, located at src.
func (c *Cache) Prime(hash types.Hash, v types.Variant, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(hash, v.Width, v.Format)] = cacheEntry{variant: v, src: src}
}

// get returns the cached entry for a hash+width+format, if present.
func (c *Cache) get(hash types.Hash, width int, format string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(hash, width, format)]
	return e, ok
}

// put records a variant generated by the current run.
func (c *Cache) put(hash types.Hash, v types.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(hash, v.Width, v.Format)] = cacheEntry{variant: v}
}

// Len returns the number of cached variants.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
