// Package cache provides a size-bounded in-memory blob cache used to keep
// recent simulation checkpoints.
package cache

import "time"

// Cache stores opaque byte blobs under string keys.
type Cache interface {
	// Get returns the blob for key if it is present and has not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 uses the cache default.
	// It reports whether the value was admitted.
	Set(key string, value []byte, ttl time.Duration) bool

	Delete(key string)
	Clear()
	Stats() Stats
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	KeysAdded uint64
	Evictions uint64
	Size      int64 // bytes currently held, approximate
	Items     int64
}
