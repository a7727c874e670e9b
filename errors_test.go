package codegen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Matching(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		err := fmt.Errorf("failed to start batch: %w", NewValidationError("count", "must be positive"))
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, "failed to start batch: invalid count: must be positive", err.Error())
	})

	t.Run("not found", func(t *testing.T) {
		err := &NotFoundError{Kind: "task", ID: "batch_1"}
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrValidation))
		assert.Equal(t, `task "batch_1" not found`, err.Error())
	})

	t.Run("segment wraps cause", func(t *testing.T) {
		cause := errors.New("renderer offline")
		err := &SegmentError{Index: -1, Segment: "render", Err: cause}
		assert.True(t, errors.Is(err, ErrSegmentEvaluation))
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "render failed: renderer offline", err.Error())
	})

	t.Run("store timeout", func(t *testing.T) {
		err := &StoreError{Op: "next", Key: "rule:R:0:none", Err: context.DeadlineExceeded}
		assert.True(t, errors.Is(err, ErrStoreUnavailable))
		assert.True(t, err.Timeout())

		other := &StoreError{Op: "next", Err: errors.New("connection refused")}
		assert.False(t, other.Timeout())
	})
}
