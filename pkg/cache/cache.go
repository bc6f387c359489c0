// Package cache stores fully calculated rasters so repeated full
// calculations of an unchanged step can skip the data source entirely.
// Example previews are never cached; they are recalculated on demand.
package cache

import (
	"context"
	"time"
)

const keyPrefix = "wrangle:full:"

// Cache is a byte-block store with per-entry TTL. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Get returns the stored block and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a block. A non-positive TTL means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
