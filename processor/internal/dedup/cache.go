// Package dedup implements the duplicate oracle: a cache-backed hint that
// lets the processor skip reports it has very likely seen already.
package dedup

import (
	"context"
	"time"
)

// Cache is the key/presence store behind the Oracle. Implementations must be
// safe for concurrent use.
type Cache interface {
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Set records key with the given expiry. Setting an existing key is harmless.
	Set(ctx context.Context, key string, ttl time.Duration) error
}

// NopCache never remembers anything. It is used when no cache is configured,
// leaving the store constraint as the only duplicate check.
type NopCache struct{}

// Exists always reports false.
func (NopCache) Exists(context.Context, string) (bool, error) { return false, nil }

// Set does nothing.
func (NopCache) Set(context.Context, string, time.Duration) error { return nil }
