// Package storetest holds a behavioral test suite shared by every SequenceStore backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/getpup/codegen/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.SequenceStore

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("IncrementOrSeed seeds then increments", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		for _, want := range []int64{5, 6, 7} {
			got, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 5, exp)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("IncrementOrSeed with zero seed never repeats", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		for _, want := range []int64{0, 1, 2} {
			got, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 0, exp)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("concurrent IncrementOrSeed is gap free", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)
		const n = 50

		values := make([]int64, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				values[i], errs[i] = s.IncrementOrSeed(ctx, "rule:R:1:none", 1, exp)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		for i, v := range values {
			assert.Equal(t, int64(i+1), v)
		}
	})

	t.Run("ReserveRange initializes absent counter to base", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		start, end, err := s.ReserveRange(ctx, "rule:R:0:none", 0, 5, exp)
		require.NoError(t, err)
		assert.Equal(t, int64(1), start)
		assert.Equal(t, int64(5), end)

		start, end, err = s.ReserveRange(ctx, "rule:R:0:none", 0, 3, exp)
		require.NoError(t, err)
		assert.Equal(t, int64(6), start)
		assert.Equal(t, int64(8), end)

		next, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 1, exp)
		require.NoError(t, err)
		assert.Equal(t, int64(9), next)
	})

	t.Run("ReserveRange rejects non-positive count", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.ReserveRange(context.Background(), "rule:R:0:none", 0, 0, time.Now().Add(time.Hour))
		assert.True(t, errors.Is(err, store.ErrInvalidCount))
	})

	t.Run("concurrent ReserveRange yields disjoint contiguous ranges", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		_, err := s.IncrementOrSeed(ctx, "rule:R:2:none", 10, exp)
		require.NoError(t, err)

		counts := []int64{3, 7, 1, 10, 4, 5, 2, 8}
		type span struct{ start, end int64 }
		spans := make([]span, len(counts))
		errs := make([]error, len(counts))
		var wg sync.WaitGroup
		for i, c := range counts {
			wg.Add(1)
			go func(i int, c int64) {
				defer wg.Done()
				spans[i].start, spans[i].end, errs[i] = s.ReserveRange(ctx, "rule:R:2:none", 0, c, exp)
			}(i, c)
		}
		wg.Wait()

		var total int64
		for i, err := range errs {
			require.NoError(t, err)
			assert.Equal(t, counts[i], spans[i].end-spans[i].start+1)
			total += counts[i]
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		assert.Equal(t, int64(11), spans[0].start)
		for i := 1; i < len(spans); i++ {
			assert.Equal(t, spans[i-1].end+1, spans[i].start)
		}
		assert.Equal(t, int64(10)+total, spans[len(spans)-1].end)
	})

	t.Run("Set and Get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)

		before := time.Now().Add(-time.Second)
		require.NoError(t, s.Set(ctx, "rule:R:0:none", 42, exp))

		c, err := s.Get(ctx, "rule:R:0:none")
		require.NoError(t, err)
		assert.Equal(t, "rule:R:0:none", c.Key)
		assert.Equal(t, int64(42), c.Value)
		assert.WithinDuration(t, exp, c.ExpiresAt, 2*time.Second)
		assert.True(t, c.UpdatedAt.After(before))

		next, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 1, exp)
		require.NoError(t, err)
		assert.Equal(t, int64(43), next)
	})

	t.Run("Get absent counter", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "rule:missing:0:none")
		assert.True(t, errors.Is(err, store.ErrCounterNotFound))
	})

	t.Run("expired counter behaves as absent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "rule:R:0:daily:20200101", 99, time.Now().Add(-time.Minute)))

		_, err := s.Get(ctx, "rule:R:0:daily:20200101")
		assert.True(t, errors.Is(err, store.ErrCounterNotFound))

		keys, err := s.ScanPrefix(ctx, "rule:R:")
		require.NoError(t, err)
		assert.Empty(t, keys)

		got, err := s.IncrementOrSeed(ctx, "rule:R:0:daily:20200101", 1, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("zero expiry never expires", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 1, time.Time{})
		require.NoError(t, err)

		c, err := s.Get(ctx, "rule:R:0:none")
		require.NoError(t, err)
		assert.True(t, c.ExpiresAt.IsZero())
	})

	t.Run("Delete removes counters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		for i := 0; i < 3; i++ {
			_, err := s.IncrementOrSeed(ctx, fmt.Sprintf("rule:R:%d:none", i), 7, exp)
			require.NoError(t, err)
		}

		n, err := s.Delete(ctx, "rule:R:0:none", "rule:R:1:none", "rule:R:9:none")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.Get(ctx, "rule:R:0:none")
		assert.True(t, errors.Is(err, store.ErrCounterNotFound))

		got, err := s.IncrementOrSeed(ctx, "rule:R:0:none", 7, exp)
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)

		n, err = s.Delete(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("ScanPrefix matches literally", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		exp := time.Now().Add(time.Hour)

		for _, key := range []string{
			"rule:A:0:none",
			"rule:A:1:daily:20261015",
			"rule:AB:0:none",
			"rule:a*[x]:0:none",
			"preview:0:none",
		} {
			require.NoError(t, s.Set(ctx, key, 1, exp))
		}

		keys, err := s.ScanPrefix(ctx, "rule:A:")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"rule:A:0:none", "rule:A:1:daily:20261015"}, keys)

		keys, err = s.ScanPrefix(ctx, "rule:a*[x]:")
		require.NoError(t, err)
		assert.Equal(t, []string{"rule:a*[x]:0:none"}, keys)

		keys, err = s.ScanPrefix(ctx, "rule:none:")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
