package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	keySchemaHits      = metrics.GetOrCreateCounter("daxc_key_schema_cache_hits_total")
	keySchemaMisses    = metrics.GetOrCreateCounter("daxc_key_schema_cache_misses_total")
	keySchemaEvictions = metrics.GetOrCreateCounter("daxc_key_schema_cache_evictions_total")
)

// reservedKeyChars may not appear in a cache key.
const reservedKeyChars = "{}()/@:"

// KeyElement names one key attribute of a table.
type KeyElement struct {
	AttributeName string
	AttributeType string
}

// KeySchema is the hash key and optional range key of a table.
type KeySchema struct {
	Hash  KeyElement
	Range *KeyElement
}

// KeyNames returns the attribute names a request key must carry.
func (s KeySchema) KeyNames() []string {
	names := []string{s.Hash.AttributeName}
	if s.Range != nil {
		names = append(names, s.Range.AttributeName)
	}
	return names
}

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type keySchemaEntry struct {
	schema     KeySchema
	insertedAt time.Time
}

// KeySchemaCache maps table names to key schemas with per-entry TTL and a
// capacity bound. Safe for concurrent use.
type KeySchemaCache struct {
	mu      sync.RWMutex
	entries map[string]keySchemaEntry
	size    int
	ttl     time.Duration

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewKeySchemaCache creates a cache with the given capacity and TTL.
func NewKeySchemaCache(size int, ttl time.Duration) *KeySchemaCache {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &KeySchemaCache{
		entries: make(map[string]keySchemaEntry),
		size:    size,
		ttl:     ttl,
	}
}

// validateCacheKey rejects empty keys and the reserved character class.
func validateCacheKey(key string) error {
	if key == "" {
		return fmt.Errorf("cache: key must not be empty")
	}
	if strings.ContainsAny(key, reservedKeyChars) {
		return fmt.Errorf("cache: key %q contains a reserved character (%s)", key, reservedKeyChars)
	}
	return nil
}

// Get returns the cached schema for a table. An entry past its TTL is
// removed and reported as a miss.
func (c *KeySchemaCache) Get(table string) (KeySchema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[table]
	if !ok {
		c.misses++
		keySchemaMisses.Inc()
		return KeySchema{}, false
	}
	if time.Since(e.insertedAt) >= c.ttl {
		delete(c.entries, table)
		c.misses++
		keySchemaMisses.Inc()
		return KeySchema{}, false
	}
	c.hits++
	keySchemaHits.Inc()
	return e.schema, true
}

// Put stores a schema, evicting the entry with the oldest insertion
// timestamp when the cache is full. The TTL restarts on every Put.
func (c *KeySchemaCache) Put(table string, schema KeySchema) error {
	if err := validateCacheKey(table); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[table]; !exists && len(c.entries) >= c.size {
		var oldest string
		var oldestAt time.Time
		for name, e := range c.entries {
			if oldest == "" || e.insertedAt.Before(oldestAt) {
				oldest = name
				oldestAt = e.insertedAt
			}
		}
		delete(c.entries, oldest)
		c.evictions++
		keySchemaEvictions.Inc()
	}

	c.entries[table] = keySchemaEntry{schema: schema, insertedAt: time.Now()}
	return nil
}

// Delete removes a table's schema.
func (c *KeySchemaCache) Delete(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, table)
}

// Clear removes every entry.
func (c *KeySchemaCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]keySchemaEntry)
}

// Names returns the cached table names.
func (c *KeySchemaCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	return names
}

// Stats returns a snapshot of the cache counters.
func (c *KeySchemaCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
