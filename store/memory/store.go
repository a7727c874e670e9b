package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/getpup/codegen/store"
)

type counter struct {
	value     int64
	expiresAt time.Time
	updatedAt time.Time
}

// Store is an in-memory implementation of SequenceStore for testing and
// single-process use. It provides thread-safe access using a sync.RWMutex.
type Store struct {
	mu       sync.RWMutex
	counters map[string]counter // key -> counter
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		counters: make(map[string]counter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// live returns the counter at key if it exists and has not expired.
// Callers must hold the lock.
func (s *Store) live(key string, now time.Time) (counter, bool) {
	c, ok := s.counters[key]
	if !ok {
		return counter{}, false
	}
	if !c.expiresAt.IsZero() && !now.Before(c.expiresAt) {
		return counter{}, false
	}
	return c, true
}

// IncrementOrSeed implements SequenceStore.
func (s *Store) IncrementOrSeed(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
	if key == "" {
		return 0, store.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.live(key, now)
	if ok {
		c.value++
	} else {
		c.value = seed
	}
	c.expiresAt = expireAt
	c.updatedAt = now
	s.counters[key] = c

	return c.value, nil
}

// ReserveRange implements SequenceStore.
func (s *Store) ReserveRange(ctx context.Context, key string, base, count int64, expireAt time.Time) (int64, int64, error) {
	if key == "" {
		return 0, 0, store.ErrInvalidKey
	}
	if count <= 0 {
		return 0, 0, store.ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.live(key, now)
	if !ok {
		c.value = base
	}
	start := c.value + 1
	c.value += count
	c.expiresAt = expireAt
	c.updatedAt = now
	s.counters[key] = c

	return start, c.value, nil
}

// Set implements SequenceStore.
func (s *Store) Set(ctx context.Context, key string, value int64, expireAt time.Time) error {
	if key == "" {
		return store.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key] = counter{
		value:     value,
		expiresAt: expireAt,
		updatedAt: s.now(),
	}
	return nil
}

// Get implements SequenceStore.
func (s *Store) Get(ctx context.Context, key string) (store.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.live(key, s.now())
	if !ok {
		return store.Counter{}, store.ErrCounterNotFound
	}

	return store.Counter{
		Key:       key,
		Value:     c.value,
		ExpiresAt: c.expiresAt,
		UpdatedAt: c.updatedAt,
	}, nil
}

// Delete implements SequenceStore.
func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	deleted := 0
	for _, key := range keys {
		if _, ok := s.live(key, now); ok {
			deleted++
		}
		delete(s.counters, key)
	}
	return deleted, nil
}

// ScanPrefix implements SequenceStore.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := []string{}
	for key := range s.counters {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if _, ok := s.live(key, now); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PurgeExpired implements Purger.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for key := range s.counters {
		if _, ok := s.live(key, now); !ok {
			delete(s.counters, key)
			purged++
		}
	}
	return purged, nil
}
