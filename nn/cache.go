package nn

import (
	"strings"
	"sync"

	"github.com/viant/sqlite-kd/index"
)

// indexes holds built indices per database path, source and dimension list.
// Every connection of the process shares it.
var indexes = &indexCache{entries: map[string]*cachedIndex{}}

type indexCache struct {
	mu      sync.Mutex
	entries map[string]*cachedIndex
}

// cachedIndex is one cache slot. build serializes loading and building;
// gen advances on every invalidation so a build that raced with a write is
// not cached.
type cachedIndex struct {
	build sync.Mutex

	mu  sync.Mutex
	idx index.Index
	gen uint64
}

func cacheKey(dbPath, source, dims string) string {
	return dbPath + "|" + source + "|" + dims
}

func (c *indexCache) entry(key string) *cachedIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cachedIndex{}
		c.entries[key] = e
	}
	return e
}

func (e *cachedIndex) current() (index.Index, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx, e.gen
}

// store caches idx unless the slot was invalidated after gen was read.
func (e *cachedIndex) store(idx index.Index, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.idx = idx
	return true
}

func (e *cachedIndex) reset() {
	e.mu.Lock()
	e.idx = nil
	e.gen++
	e.mu.Unlock()
}

// InvalidateCache drops cached indices for a points table across active
// connections and returns how many entries were cleared.
func InvalidateCache(source string) int {
	pattern := "|" + source + "|"
	indexes.mu.Lock()
	defer indexes.mu.Unlock()
	count := 0
	for k, e := range indexes.entries {
		if strings.Contains(k, pattern) {
			e.reset()
			count++
		}
	}
	return count
}
