package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotObtained is returned when another action holds the lock
var ErrLockNotObtained = errors.New("lock not obtained")

// IdempotencyStore remembers keys of actions that must run at most once
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL
	// Returns true if the key was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// Locker serializes actions on the same key
type Locker interface {
	// Obtain acquires the lock for key, returning ErrLockNotObtained when it is held.
	// The returned release function is safe to call more than once.
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered
	TTL time.Duration
	// LockTTL bounds how long a single action may hold its lock
	LockTTL time.Duration
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     30 * 24 * time.Hour,
		LockTTL: 30 * time.Second,
	}
}
