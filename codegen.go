// Package codegen allocates gap-free serial numbers, composes codes from
// segment rules and runs cancellable batch generation jobs.
package codegen

import "context"

// SerialAllocator hands out serial values for rule segments.
// Implementations must be safe for concurrent use across goroutines and processes.
type SerialAllocator interface {
	// Next returns the next value of the counter for the current window.
	// The first value of a window is start.
	Next(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy, start int64) (int64, error)

	// NextPreview is Next in the preview namespace. It never touches rule counters.
	NextPreview(ctx context.Context, segmentIndex int, policy ResetPolicy, start int64) (int64, error)
}

// Composer turns a rule and caller parameters into a code.
type Composer interface {
	// Compose evaluates every segment of rule in order and concatenates the output.
	// Any failing segment aborts the whole code.
	Compose(ctx context.Context, rule CodeRule, params Params) (string, error)

	// ComposePreview evaluates segments with preview counters.
	ComposePreview(ctx context.Context, segments []Segment, params Params) (string, error)
}
