// Package cache provides content-addressed caching for conversion
// artifacts. Identical workbook bytes converted with identical options
// produce the same key, so repeated conversions skip the render and
// raster stages entirely.
package cache

import (
	"context"
	"time"
)

// TTLArtifact bounds how long converted artifacts live in the cache.
const TTLArtifact = 7 * 24 * time.Hour

// Cache stores conversion artifacts by key.
type Cache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
