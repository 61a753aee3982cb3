// Package cache provides a small key-value cache abstraction shared by the
// preview, imagery, and analysis cache namespaces. TTL is enforced by
// comparing stored timestamps; a zero TTL means the entry never expires.
package cache

import (
	"context"
	"time"
)

// Namespace prefixes for the cache namespaces used by the preview pipeline.
const (
	PrefixPreview  = "preview:"
	PrefixImagery  = "imagery:"
	PrefixAnalysis = "analysis:"
)

// Store defines the key-value cache contract.
type Store interface {
	// Get returns the value for key. The second return value is false when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a value under key. A ttl of zero means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// DeletePrefix removes all keys with the given prefix and returns the
	// number of entries removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
