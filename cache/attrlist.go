package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/metrics"
)

var (
	attrListHits      = metrics.GetOrCreateCounter("daxc_attr_list_cache_hits_total")
	attrListMisses    = metrics.GetOrCreateCounter("daxc_attr_list_cache_misses_total")
	attrListEvictions = metrics.GetOrCreateCounter("daxc_attr_list_cache_evictions_total")
)

// HashNames computes the content hash of an attribute-name list: SHA-256
// over the sorted names joined by '|'. The hash identifies a list
// independent of its order.
func HashNames(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

type attrListEntry struct {
	names []string
	hash  string
}

// AttributeListCache maps agreed integer ids to ordered attribute-name
// lists, with an inverse index by content hash. Ids are monotone, assigned
// on first insertion. Eviction is LRU by access counter. Safe for
// concurrent use.
type AttributeListCache struct {
	mu      sync.Mutex
	byID    map[uint64]attrListEntry
	byHash  map[string]uint64
	lru     *MapHeap
	size    int
	nextID  uint64
	counter uint64 // bumped on each hit or insertion

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewAttributeListCache creates a cache with the given capacity.
func NewAttributeListCache(size int) *AttributeListCache {
	if size <= 0 {
		size = 1000
	}
	return &AttributeListCache{
		byID:   make(map[uint64]attrListEntry),
		byHash: make(map[string]uint64),
		lru:    NewMapHeap(),
		size:   size,
	}
}

// Get returns the names stored under an id, bumping its recency.
func (c *AttributeListCache) Get(id uint64) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byID[id]
	if !ok {
		c.misses++
		attrListMisses.Inc()
		return nil, false
	}
	c.counter++
	c.lru.AddItem(id, c.counter)
	c.hits++
	attrListHits.Inc()
	return e.names, true
}

// PutByNames stores a name list, assigning a fresh monotone id when its
// content hash is unseen; otherwise the existing id is returned and its
// recency bumped.
func (c *AttributeListCache) PutByNames(names []string) uint64 {
	hash := HashNames(names)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.byHash[hash]; ok {
		c.counter++
		c.lru.AddItem(id, c.counter)
		return id
	}

	if len(c.byID) >= c.size {
		if victim, ok := c.lru.PopMin(); ok {
			if e, ok := c.byID[victim]; ok {
				delete(c.byHash, e.hash)
				delete(c.byID, victim)
			}
			c.evictions++
			attrListEvictions.Inc()
		}
	}

	c.nextID++
	id := c.nextID
	stored := make([]string, len(names))
	copy(stored, names)
	c.byID[id] = attrListEntry{names: stored, hash: hash}
	c.byHash[hash] = id
	c.counter++
	c.lru.AddItem(id, c.counter)
	return id
}

// IDByNameHash returns the id previously agreed for a content hash.
func (c *AttributeListCache) IDByNameHash(hash string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.byHash[hash]
	if !ok {
		c.misses++
		attrListMisses.Inc()
		return 0, false
	}
	c.counter++
	c.lru.AddItem(id, c.counter)
	c.hits++
	attrListHits.Inc()
	return id, true
}

// Stats returns a snapshot of the cache counters.
func (c *AttributeListCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.byID),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
