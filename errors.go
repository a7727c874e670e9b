package codegen

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input that was rejected before any work started.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown rule or batch task.
	ErrNotFound = errors.New("not found")

	// ErrSegmentEvaluation indicates that a segment, or the renderer, could not produce output.
	// The code being composed is abandoned.
	ErrSegmentEvaluation = errors.New("segment evaluation failed")

	// ErrUnsupportedSegment indicates a segment variant the composer does not know.
	ErrUnsupportedSegment = errors.New("unsupported segment type")

	// ErrStoreUnavailable indicates the sequence store could not be reached within the
	// configured timeout and retry budget.
	ErrStoreUnavailable = errors.New("sequence store unavailable")

	// ErrEmptyBatch indicates a batch request without any items.
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrBatchTooLarge indicates a batch request above the configured maximum size.
	ErrBatchTooLarge = errors.New("batch too large")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError reports an unknown rule or task.
type NotFoundError struct {
	// Kind is the kind of resource, for example "rule" or "task".
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is reports ErrNotFound as a match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SegmentError reports which segment of a rule failed.
// Index is -1 when the failure is not tied to a segment, as with rendering.
type SegmentError struct {
	Index   int
	Segment string
	Err     error
}

func (e *SegmentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s failed: %v", e.Segment, e.Err)
	}
	return fmt.Sprintf("segment %d (%s) failed: %v", e.Index, e.Segment, e.Err)
}

// Is reports ErrSegmentEvaluation as a match.
func (e *SegmentError) Is(target error) bool {
	return target == ErrSegmentEvaluation
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// StoreError reports a sequence store call that failed after all retries.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("sequence store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sequence store %s %q failed: %v", e.Op, e.Key, e.Err)
}

// Is reports ErrStoreUnavailable as a match.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the last attempt hit the per-call deadline.
func (e *StoreError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
