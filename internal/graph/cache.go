package graph

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CacheKey derives a stable key from the file set: a hash over the sorted
// paths and their content fingerprints. Two identical trees always yield
// the same key.
func CacheKey(fingerprints map[string]string) string {
	paths := make([]string, 0, len(fingerprints))
	for path := range fingerprints {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		b.WriteString(path)
		b.WriteByte(':')
		b.WriteString(fingerprints[path])
		b.WriteByte('\n')
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(b.String())))
}

// Cache holds the most recently built graph keyed by its file-set hash.
// A hit returns the prior graph without re-indexing. Safe for concurrent
// use, though the healing loop is single-threaded by design.
type Cache struct {
	mu    sync.Mutex
	key   string
	graph *Graph
}

func NewCache() *Cache {
	return &Cache{}
}

// Get returns the cached graph if key matches the stored one.
func (c *Cache) Get(key string) (*Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graph == nil || c.key != key {
		return nil, false
	}
	return c.graph, true
}

// Put stores g under key, replacing any previous entry.
func (c *Cache) Put(key string, g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.graph = g
}
