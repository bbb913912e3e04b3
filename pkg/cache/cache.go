// Package cache stores results of expensive external lookups (plz queries,
// interpreter introspection) between and within pyllemi runs.
//
// Backends:
//   - [NullCache]: caching disabled
//   - [MemoryCache]: process-lifetime memo table (LRU with TTL)
//   - [FileCache]: per-user directory under ~/.cache/pyllemi
//   - [RedisCache]: shared between machines, e.g. CI runners
//
// Keys come from a [Keyer] so that every backend agrees on naming.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values per entry kind.
const (
	TTLQuery  = time.Hour          // whatinputs results
	TTLStdlib = 7 * 24 * time.Hour // interpreter stdlib module names
)

// Cache is a byte-oriented key/value store with per-entry TTL.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
