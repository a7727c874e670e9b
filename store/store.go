package store

import (
	"context"
	"time"
)

// Counter is the persisted state of one serial counter.
type Counter struct {
	// Key is the logical key, as produced by codegen.SequenceKey.String.
	Key string

	// Value is the last value handed out.
	Value int64

	// ExpiresAt is when the counter disappears. Zero means never.
	ExpiresAt time.Time

	// UpdatedAt is the time of the last write.
	UpdatedAt time.Time
}

// SequenceStore persists serial counters.
// Implementations must be safe for concurrent access from multiple goroutines
// and, for shared backends, from multiple processes. An expired counter must
// behave exactly like an absent one.
type SequenceStore interface {
	// IncrementOrSeed atomically advances the counter at key.
	// If the counter is absent it is created holding seed and seed is returned;
	// otherwise it is incremented and the new value returned. The expiry is set
	// to expireAt in the same atomic step.
	IncrementOrSeed(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error)

	// ReserveRange atomically reserves count consecutive values.
	// An absent counter is first initialized to base. The returned interval is
	// [stored+1, stored+count] and the counter is left at its end.
	ReserveRange(ctx context.Context, key string, base, count int64, expireAt time.Time) (start, end int64, err error)

	// Set overwrites the counter value and expiry.
	Set(ctx context.Context, key string, value int64, expireAt time.Time) error

	// Get returns the counter at key.
	// Returns ErrCounterNotFound if the counter is absent or expired.
	Get(ctx context.Context, key string) (Counter, error)

	// Delete removes the counters and their metadata.
	// Returns the number of counters that existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// ScanPrefix returns the keys of all live counters starting with prefix.
	// Returns an empty slice if nothing matches.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Purger is implemented by stores that keep expired rows until they are
// explicitly removed.
type Purger interface {
	// PurgeExpired deletes every counter whose expiry has passed.
	// Returns the number of counters removed.
	PurgeExpired(ctx context.Context) (int, error)
}
