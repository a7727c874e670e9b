package serial

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/store"
	"github.com/getpup/codegen/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock shared by the allocator and the memory store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// mockLogger captures log calls for testing
type mockLogger struct {
	mu    sync.Mutex
	calls []logCall
}

type logCall struct {
	level   string
	message string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	m.record("debug", msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	m.record("info", msg)
}

func (m *mockLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	m.record("error", msg)
}

func (m *mockLogger) record(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, logCall{level: level, message: msg})
}

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.level == level {
			n++
		}
	}
	return n
}

func newMemoryAllocator(clock *fakeClock) *Allocator {
	return New(Config{
		Store:    memory.New(memory.WithClock(clock.Now)),
		Location: time.UTC,
		Clock:    clock.Now,
	})
}

func fastRetries(s store.SequenceStore) Config {
	return Config{
		Store:            s,
		OperationTimeout: 50 * time.Millisecond,
		MaxRetries:       2,
		RetryInterval:    time.Millisecond,
		Location:         time.UTC,
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	a := New(Config{Store: store.NewMockSequenceStore()})

	assert.Equal(t, 2*time.Second, a.config.OperationTimeout)
	assert.Equal(t, 3, a.config.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, a.config.RetryInterval)
	assert.Equal(t, codegen.DefaultLease, a.config.Lease)
	assert.Equal(t, time.Local, a.config.Location)
	assert.NotNil(t, a.config.Clock)
}

func TestNew_NegativeRetriesDisablesRetry(t *testing.T) {
	a := New(Config{Store: store.NewMockSequenceStore(), MaxRetries: -1})
	assert.Equal(t, 0, a.config.MaxRetries)
}

func TestNext_FirstValueIsStartThenIncrements(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	for i, want := range []int64{100, 101, 102} {
		got, err := a.Next(ctx, "R1", 2, codegen.ResetNone, 100)
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, want, got)
	}
}

func TestNext_ZeroStartNeverRepeats(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	var got []int64
	for i := 0; i < 3; i++ {
		v, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 0)
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int64{0, 1, 2}, got)
}

func TestNext_DailyWindowRestarts(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.October, 15, 23, 59, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	v, err := a.Next(ctx, "R1", 0, codegen.ResetDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = a.Next(ctx, "R1", 0, codegen.ResetDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	clock.Set(time.Date(2026, time.October, 16, 0, 0, 1, 0, time.UTC))
	v, err = a.Next(ctx, "R1", 0, codegen.ResetDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNext_MonthlyAndYearlyWindows(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.December, 31, 12, 0, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	for _, policy := range []codegen.ResetPolicy{codegen.ResetMonthly, codegen.ResetYearly} {
		_, err := a.Next(ctx, "R1", 0, policy, 1)
		require.NoError(t, err)
		v, err := a.Next(ctx, "R1", 0, policy, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v, policy)
	}

	clock.Set(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC))
	for _, policy := range []codegen.ResetPolicy{codegen.ResetMonthly, codegen.ResetYearly} {
		v, err := a.Next(ctx, "R1", 0, policy, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, policy)
	}
}

func TestNext_SegmentsAndRulesAreIndependent(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	_, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)

	v, err := a.Next(ctx, "R1", 1, codegen.ResetNone, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = a.Next(ctx, "R2", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = a.NextPreview(ctx, 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNext_ConcurrentCallersGetDistinctContiguousValues(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	const workers = 20
	const perWorker = 25

	var mu sync.Mutex
	var values []int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				v, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				values = append(values, v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, values, workers*perWorker)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestNext_ValidatesInput(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	a := New(Config{Store: mockStore})
	ctx := context.Background()

	_, err := a.Next(ctx, "", 0, codegen.ResetNone, 1)
	assert.ErrorIs(t, err, codegen.ErrValidation)

	_, err = a.Next(ctx, "R1", -1, codegen.ResetNone, 1)
	assert.ErrorIs(t, err, codegen.ErrValidation)

	_, err = a.Next(ctx, "R1", 0, codegen.ResetPolicy("hourly"), 1)
	assert.ErrorIs(t, err, codegen.ErrValidation)

	assert.Empty(t, mockStore.IncrementOrSeedCalls)
}

func TestNext_PassesWindowKeyAndExpiry(t *testing.T) {
	now := time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)
	mockStore := store.NewMockSequenceStore()
	a := New(Config{Store: mockStore, Location: time.UTC, Clock: func() time.Time { return now }})

	_, err := a.Next(context.Background(), "R1", 3, codegen.ResetMonthly, 7)
	require.NoError(t, err)

	require.Len(t, mockStore.IncrementOrSeedCalls, 1)
	call := mockStore.IncrementOrSeedCalls[0]
	assert.Equal(t, "rule:R1:3:monthly:202610", call.Key)
	assert.Equal(t, int64(7), call.Seed)
	assert.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), call.ExpireAt)
}

func TestNext_NoWindowUsesLease(t *testing.T) {
	now := time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)
	mockStore := store.NewMockSequenceStore()
	a := New(Config{Store: mockStore, Lease: time.Hour, Clock: func() time.Time { return now }})

	_, err := a.Next(context.Background(), "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)

	require.Len(t, mockStore.IncrementOrSeedCalls, 1)
	assert.Equal(t, "rule:R1:0:none", mockStore.IncrementOrSeedCalls[0].Key)
	assert.True(t, now.Add(time.Hour).Equal(mockStore.IncrementOrSeedCalls[0].ExpireAt))
}

func TestNext_RetriesTransientErrors(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	attempts := 0
	mockStore.IncrementOrSeedFunc = func(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	}
	a := New(fastRetries(mockStore))

	v, err := a.Next(context.Background(), "R1", 0, codegen.ResetNone, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, 3, attempts)
}

func TestNext_ExhaustedRetriesReturnStoreError(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	mockStore.IncrementOrSeedFunc = func(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
		return 0, errors.New("connection refused")
	}
	logger := &mockLogger{}
	cfg := fastRetries(mockStore)
	cfg.Logger = logger
	a := New(cfg)

	_, err := a.Next(context.Background(), "R1", 0, codegen.ResetNone, 1)

	require.Error(t, err)
	assert.ErrorIs(t, err, codegen.ErrStoreUnavailable)
	var storeErr *codegen.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "next", storeErr.Op)
	assert.Equal(t, "rule:R1:0:none", storeErr.Key)
	assert.False(t, storeErr.Timeout())
	assert.Len(t, mockStore.IncrementOrSeedCalls, 3)
	assert.Equal(t, 2, logger.count("debug"))
	assert.Equal(t, 1, logger.count("error"))
}

func TestNext_SlowStoreTimesOut(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	mockStore.IncrementOrSeedFunc = func(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	cfg := fastRetries(mockStore)
	cfg.OperationTimeout = 10 * time.Millisecond
	cfg.MaxRetries = -1
	a := New(cfg)

	_, err := a.Next(context.Background(), "R1", 0, codegen.ResetNone, 1)

	var storeErr *codegen.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.True(t, storeErr.Timeout())
	assert.Len(t, mockStore.IncrementOrSeedCalls, 1)
}

func TestNext_CancelledContextStopsRetrying(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	ctx, cancel := context.WithCancel(context.Background())
	mockStore.IncrementOrSeedFunc = func(context.Context, string, int64, time.Time) (int64, error) {
		cancel()
		return 0, errors.New("boom")
	}
	a := New(fastRetries(mockStore))

	_, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, codegen.ErrStoreUnavailable)
	assert.Len(t, mockStore.IncrementOrSeedCalls, 1)
}

func TestAllocateRange_FirstRangeStartsAtOne(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	r, err := a.AllocateRange(ctx, "R1", 0, codegen.ResetNone, 10)
	require.NoError(t, err)
	assert.Equal(t, codegen.Range{Start: 1, End: 10}, r)

	r, err = a.AllocateRange(ctx, "R1", 0, codegen.ResetNone, 5)
	require.NoError(t, err)
	assert.Equal(t, codegen.Range{Start: 11, End: 15}, r)

	v, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(16), v)
}

func TestAllocateRange_ConcurrentRangesAreDisjoint(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	const callers = 10
	ranges := make([]codegen.Range, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := a.AllocateRange(ctx, "R1", 0, codegen.ResetDaily, 7)
			assert.NoError(t, err)
			ranges[i] = r
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, r := range ranges {
		assert.Equal(t, int64(7), r.Len())
		for _, v := range r.Values() {
			assert.False(t, seen[v], "value %d allocated twice", v)
			seen[v] = true
		}
	}
	assert.Len(t, seen, callers*7)
}

func TestAllocateRange_RejectsNonPositiveCount(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	a := New(Config{Store: mockStore})

	for _, count := range []int64{0, -3} {
		_, err := a.AllocateRange(context.Background(), "R1", 0, codegen.ResetNone, count)
		assert.ErrorIs(t, err, codegen.ErrValidation)
	}
	assert.Empty(t, mockStore.ReserveRangeCalls)
}

func TestAllocateRange_InvalidCountFromStoreIsNotRetried(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	mockStore.ReserveRangeFunc = func(context.Context, string, int64, int64, time.Time) (int64, int64, error) {
		return 0, 0, store.ErrInvalidCount
	}
	a := New(fastRetries(mockStore))

	_, err := a.AllocateRange(context.Background(), "R1", 0, codegen.ResetNone, 1)

	assert.ErrorIs(t, err, store.ErrInvalidCount)
	assert.Len(t, mockStore.ReserveRangeCalls, 1)
}

func TestReset_RestartsFromStart(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 5)
		require.NoError(t, err)
	}

	require.NoError(t, a.Reset(ctx, "R1", 0, codegen.ResetNone))

	v, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestReset_MissingCounterIsNotAnError(t *testing.T) {
	a := New(Config{Store: memory.New()})
	assert.NoError(t, a.Reset(context.Background(), "R1", 0, codegen.ResetDaily))
}

func TestResetAll_RemovesOnlyThatRule(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	for _, target := range []struct {
		rule   string
		index  int
		policy codegen.ResetPolicy
	}{
		{"R1", 0, codegen.ResetNone},
		{"R1", 1, codegen.ResetDaily},
		{"R1:x", 0, codegen.ResetNone},
		{"R10", 0, codegen.ResetNone},
	} {
		_, err := a.Next(ctx, target.rule, target.index, target.policy, 1)
		require.NoError(t, err)
	}
	_, err := a.NextPreview(ctx, 0, codegen.ResetNone, 1)
	require.NoError(t, err)

	n, err := a.ResetAll(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, rule := range []string{"R1:x", "R10"} {
		v, err := a.Current(ctx, rule, 0, codegen.ResetNone)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v, rule)
	}
	v, err := a.Current(ctx, "R1", 0, codegen.ResetNone)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestResetAll_RequiresRuleID(t *testing.T) {
	a := New(Config{Store: store.NewMockSequenceStore()})
	_, err := a.ResetAll(context.Background(), "")
	assert.ErrorIs(t, err, codegen.ErrValidation)
}

func TestResetPreview_LeavesRuleCounters(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	_, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	_, err = a.NextPreview(ctx, 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	_, err = a.NextPreview(ctx, 1, codegen.ResetYearly, 1)
	require.NoError(t, err)

	n, err := a.ResetPreview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := a.Current(ctx, "R1", 0, codegen.ResetNone)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestSetValue_NextReturnsValuePlusOne(t *testing.T) {
	a := New(Config{Store: memory.New()})
	ctx := context.Background()

	require.NoError(t, a.SetValue(ctx, "R1", 0, codegen.ResetNone, 500))

	v, err := a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(501), v)
}

func TestSetValue_RejectsNegative(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	a := New(Config{Store: mockStore})

	err := a.SetValue(context.Background(), "R1", 0, codegen.ResetNone, -1)

	assert.ErrorIs(t, err, codegen.ErrValidation)
	assert.Empty(t, mockStore.SetCalls)
}

func TestCurrent_AbsentCounterIsZero(t *testing.T) {
	a := New(Config{Store: store.NewMockSequenceStore()})

	v, err := a.Current(context.Background(), "R1", 0, codegen.ResetNone)

	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestStatus_ListsLiveCountersSorted(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC))
	a := newMemoryAllocator(clock)
	ctx := context.Background()

	_, err := a.Next(ctx, "R1", 2, codegen.ResetDaily, 10)
	require.NoError(t, err)
	_, err = a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	_, err = a.Next(ctx, "R1", 0, codegen.ResetNone, 1)
	require.NoError(t, err)
	_, err = a.Next(ctx, "R1:x", 0, codegen.ResetNone, 1)
	require.NoError(t, err)

	statuses, err := a.Status(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "rule:R1:0:none", statuses[0].Key)
	assert.Equal(t, int64(2), statuses[0].CurrentValue)
	assert.Equal(t, codegen.ResetNone, statuses[0].Policy)
	assert.Equal(t, "", statuses[0].Window)

	assert.Equal(t, "rule:R1:2:daily:20261015", statuses[1].Key)
	assert.Equal(t, 2, statuses[1].SegmentIndex)
	assert.Equal(t, "20261015", statuses[1].Window)
	assert.Equal(t, int64(10), statuses[1].CurrentValue)
	assert.Equal(t, time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC), statuses[1].ExpiresAt)
	assert.Equal(t, clock.Now(), statuses[1].LastUpdate)
}

func TestStatus_SkipsCountersThatExpireDuringScan(t *testing.T) {
	mockStore := store.NewMockSequenceStore()
	mockStore.ScanPrefixFunc = func(context.Context, string) ([]string, error) {
		return []string{"rule:R1:0:none", "rule:R1:1:none"}, nil
	}
	mockStore.GetFunc = func(ctx context.Context, key string) (store.Counter, error) {
		if key == "rule:R1:0:none" {
			return store.Counter{}, store.ErrCounterNotFound
		}
		return store.Counter{Key: key, Value: 9}, nil
	}
	a := New(Config{Store: mockStore})

	statuses, err := a.Status(context.Background(), "R1")

	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, int64(9), statuses[0].CurrentValue)
}
