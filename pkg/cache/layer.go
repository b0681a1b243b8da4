// Package cache defines the decision memo: a keyed store of engine decisions
// that lets repeated vectors skip inference while the same model is loaded.
package cache

import (
	"context"
	"time"

	"fraud-gate/pkg/engine"
)

// Layer is one tier of the decision memo. Implementations must be safe for
// concurrent use.
type Layer interface {
	// Get returns the memoized decision for key, or an error matching
	// ErrKeyNotFound on a miss.
	Get(ctx context.Context, key string) (engine.Decision, error)

	// Set stores a decision for key. A zero ttl means the layer default.
	Set(ctx context.Context, key string, d engine.Decision, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics (e.g. "L1", "redis").
	Name() string

	// Close releases any resources held by the layer.
	Close() error
}

// Entry is a memoized decision with its expiry.
type Entry struct {
	Key       string
	Decision  engine.Decision
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TimeToLive returns the remaining time-to-live, or 0 if already expired.
func (e *Entry) TimeToLive() time.Duration {
	if e.IsExpired() {
		return 0
	}
	return time.Until(e.ExpiresAt)
}
