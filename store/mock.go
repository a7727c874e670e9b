package store

import (
	"context"
	"sync"
	"time"
)

// MockSequenceStore is a configurable mock implementation of SequenceStore
// for use in tests. It allows setting up expected return values, tracking method
// calls, and injecting errors for testing error paths.
type MockSequenceStore struct {
	mu sync.RWMutex

	// IncrementOrSeedFunc is called by IncrementOrSeed if set.
	IncrementOrSeedFunc func(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error)

	// ReserveRangeFunc is called by ReserveRange if set.
	ReserveRangeFunc func(ctx context.Context, key string, base, count int64, expireAt time.Time) (int64, int64, error)

	// SetFunc is called by Set if set.
	SetFunc func(ctx context.Context, key string, value int64, expireAt time.Time) error

	// GetFunc is called by Get if set.
	GetFunc func(ctx context.Context, key string) (Counter, error)

	// DeleteFunc is called by Delete if set.
	DeleteFunc func(ctx context.Context, keys ...string) (int, error)

	// ScanPrefixFunc is called by ScanPrefix if set.
	ScanPrefixFunc func(ctx context.Context, prefix string) ([]string, error)

	// Call tracking
	IncrementOrSeedCalls []IncrementOrSeedCall
	ReserveRangeCalls    []ReserveRangeCall
	SetCalls             []SetCall
	GetCalls             []GetCall
	DeleteCalls          []DeleteCall
	ScanPrefixCalls      []ScanPrefixCall
}

// Call tracking structs
type IncrementOrSeedCall struct {
	Key      string
	Seed     int64
	ExpireAt time.Time
}

type ReserveRangeCall struct {
	Key      string
	Base     int64
	Count    int64
	ExpireAt time.Time
}

type SetCall struct {
	Key      string
	Value    int64
	ExpireAt time.Time
}

type GetCall struct {
	Key string
}

type DeleteCall struct {
	Keys []string
}

type ScanPrefixCall struct {
	Prefix string
}

// NewMockSequenceStore creates a new mock sequence store.
func NewMockSequenceStore() *MockSequenceStore {
	return &MockSequenceStore{}
}

// IncrementOrSeed implements SequenceStore.
func (m *MockSequenceStore) IncrementOrSeed(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
	m.mu.Lock()
	m.IncrementOrSeedCalls = append(m.IncrementOrSeedCalls, IncrementOrSeedCall{
		Key:      key,
		Seed:     seed,
		ExpireAt: expireAt,
	})
	m.mu.Unlock()

	if m.IncrementOrSeedFunc != nil {
		return m.IncrementOrSeedFunc(ctx, key, seed, expireAt)
	}

	return seed, nil
}

// ReserveRange implements SequenceStore.
func (m *MockSequenceStore) ReserveRange(ctx context.Context, key string, base, count int64, expireAt time.Time) (int64, int64, error) {
	m.mu.Lock()
	m.ReserveRangeCalls = append(m.ReserveRangeCalls, ReserveRangeCall{
		Key:      key,
		Base:     base,
		Count:    count,
		ExpireAt: expireAt,
	})
	m.mu.Unlock()

	if m.ReserveRangeFunc != nil {
		return m.ReserveRangeFunc(ctx, key, base, count, expireAt)
	}

	return base + 1, base + count, nil
}

// Set implements SequenceStore.
func (m *MockSequenceStore) Set(ctx context.Context, key string, value int64, expireAt time.Time) error {
	m.mu.Lock()
	m.SetCalls = append(m.SetCalls, SetCall{
		Key:      key,
		Value:    value,
		ExpireAt: expireAt,
	})
	m.mu.Unlock()

	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expireAt)
	}

	return nil
}

// Get implements SequenceStore.
func (m *MockSequenceStore) Get(ctx context.Context, key string) (Counter, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, GetCall{
		Key: key,
	})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}

	return Counter{}, ErrCounterNotFound
}

// Delete implements SequenceStore.
func (m *MockSequenceStore) Delete(ctx context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, DeleteCall{
		Keys: append([]string(nil), keys...),
	})
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys...)
	}

	return 0, nil
}

// ScanPrefix implements SequenceStore.
func (m *MockSequenceStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	m.ScanPrefixCalls = append(m.ScanPrefixCalls, ScanPrefixCall{
		Prefix: prefix,
	})
	m.mu.Unlock()

	if m.ScanPrefixFunc != nil {
		return m.ScanPrefixFunc(ctx, prefix)
	}

	return []string{}, nil
}

// Reset clears all call tracking.
func (m *MockSequenceStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IncrementOrSeedCalls = nil
	m.ReserveRangeCalls = nil
	m.SetCalls = nil
	m.GetCalls = nil
	m.DeleteCalls = nil
	m.ScanPrefixCalls = nil
}

