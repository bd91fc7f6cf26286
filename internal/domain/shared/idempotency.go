package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivery IDs that have already been accepted.
// Implementations must be safe for concurrent use by many webhook handlers.
type IdempotencyStore interface {
	// MarkProcessed records the ID with a TTL.
	// Returns true if the ID was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an ID is currently remembered
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Release forgets the ID so a re-delivery is processed again.
	// Releasing an unknown ID is not an error.
	Release(ctx context.Context, eventID string) error

	// Close stops background work and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for delivery deduplication
type IdempotencyConfig struct {
	// TTL is how long a delivery ID is remembered.
	// After this duration the same ID is accepted again.
	// Default: 1 hour
	TTL time.Duration

	// Enabled determines whether deduplication is performed at all
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default deduplication configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     time.Hour,
		Enabled: true,
	}
}
