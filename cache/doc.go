// Package cache holds the two server-assisted metadata caches that let the
// client elide round-trips.
//
// KeySchemaCache maps table names to their hash/range key schema so request
// keys can be validated before any bytes go on the wire. Entries expire on
// a per-entry TTL measured from insertion; at capacity the entry with the
// oldest insertion timestamp is evicted.
//
// AttributeListCache maps small integer ids to ordered attribute-name
// lists, with an inverse index on a content hash, so the server dialect can
// refer to repeated item shapes by id. Eviction is LRU by a monotonically
// increasing access counter, backed by a map-indexed min-heap.
package cache
