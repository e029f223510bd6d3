// Package cache provides a keyed, tiered, TTL-governed cache for catalog calls.
//
// Entries live in named buckets. Every bucket keeps entries in memory; buckets
// flagged durable may also persist them through a DiskTier. The Engine
// deduplicates concurrent producer calls per key and exposes global, per-entry
// and last-location invalidation. Wrap binds a producer to a bucket so callers
// never see the cache.
package cache
