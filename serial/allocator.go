package serial

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/metrics"
	"github.com/getpup/codegen/store"
	"github.com/getpup/pupsourcing/es"
)

// Config configures an Allocator.
type Config struct {
	// Store persists the counters (required).
	Store store.SequenceStore

	// OperationTimeout bounds every single store call (default: 2s).
	OperationTimeout time.Duration

	// MaxRetries is how many times a failed store call is retried (default: 3).
	// A negative value disables retries.
	MaxRetries int

	// RetryInterval is the first backoff delay between retries (default: 50ms).
	RetryInterval time.Duration

	// Lease is how long a counter without a reset window lives after its last write
	// (default: 365 days).
	Lease time.Duration

	// Location is the time zone that defines day, month and year windows
	// (default: time.Local).
	Location *time.Location

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	// Logger is for observability (optional).
	Logger es.Logger

	// Collector records allocation metrics (optional).
	Collector *metrics.Collector
}

// Allocator hands out serial values backed by a SequenceStore.
// It keeps no state of its own, so any number of allocators in any number of
// processes can share one store.
type Allocator struct {
	config Config
}

var _ codegen.SerialAllocator = (*Allocator)(nil)

// New creates a new Allocator with the given configuration.
// Applies default values for unset fields.
func New(cfg Config) *Allocator {
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	if cfg.Lease == 0 {
		cfg.Lease = codegen.DefaultLease
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Allocator{config: cfg}
}

func (a *Allocator) now() time.Time {
	return a.config.Clock().In(a.config.Location)
}

func validateTarget(ruleID string, segmentIndex int, policy codegen.ResetPolicy) error {
	if ruleID == "" {
		return codegen.NewValidationError("ruleId", "must not be empty")
	}
	return validateSegment(segmentIndex, policy)
}

func validateSegment(segmentIndex int, policy codegen.ResetPolicy) error {
	if segmentIndex < 0 {
		return codegen.NewValidationError("segmentIndex", "must not be negative")
	}
	if !policy.Valid() {
		return codegen.NewValidationError("resetPolicy", fmt.Sprintf("unknown policy %q", policy))
	}
	return nil
}

// Next returns the next serial value of a rule segment for the current window.
// The first call in a window returns start; later calls return strictly
// increasing values with no gaps, across all callers sharing the store.
func (a *Allocator) Next(ctx context.Context, ruleID string, segmentIndex int, policy codegen.ResetPolicy, start int64) (int64, error) {
	if err := validateTarget(ruleID, segmentIndex, policy); err != nil {
		return 0, err
	}

	now := a.now()
	key := codegen.NewSequenceKey(ruleID, segmentIndex, policy, now).String()
	value, err := a.increment(ctx, "next", key, start, policy.ExpiresAt(now, a.config.Lease))
	if err != nil {
		return 0, err
	}

	a.config.Collector.IncSerialAllocations(string(policy), string(codegen.ScopeRule))
	if a.config.Logger != nil {
		a.config.Logger.Debug(ctx, "serial allocated", "key", key, "value", value)
	}
	return value, nil
}

// NextPreview is Next in the preview namespace. Preview counters are keyed by
// segment position only and are therefore shared by every rule.
func (a *Allocator) NextPreview(ctx context.Context, segmentIndex int, policy codegen.ResetPolicy, start int64) (int64, error) {
	if err := validateSegment(segmentIndex, policy); err != nil {
		return 0, err
	}

	now := a.now()
	key := codegen.NewPreviewKey(segmentIndex, policy, now).String()
	value, err := a.increment(ctx, "next_preview", key, start, policy.ExpiresAt(now, a.config.Lease))
	if err != nil {
		return 0, err
	}

	a.config.Collector.IncSerialAllocations(string(policy), string(codegen.ScopePreview))
	return value, nil
}

func (a *Allocator) increment(ctx context.Context, op, key string, start int64, expireAt time.Time) (int64, error) {
	var value int64
	err := a.call(ctx, op, key, func(ctx context.Context) error {
		v, err := a.config.Store.IncrementOrSeed(ctx, key, start, expireAt)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	return value, err
}

// AllocateRange reserves count consecutive values in one atomic step.
// A counter that does not exist yet starts from zero, so its first range begins at 1.
func (a *Allocator) AllocateRange(ctx context.Context, ruleID string, segmentIndex int, policy codegen.ResetPolicy, count int64) (codegen.Range, error) {
	if err := validateTarget(ruleID, segmentIndex, policy); err != nil {
		return codegen.Range{}, err
	}
	if count <= 0 {
		return codegen.Range{}, codegen.NewValidationError("count", "must be positive")
	}

	now := a.now()
	key := codegen.NewSequenceKey(ruleID, segmentIndex, policy, now).String()
	expireAt := policy.ExpiresAt(now, a.config.Lease)

	var r codegen.Range
	err := a.call(ctx, "allocate_range", key, func(ctx context.Context) error {
		start, end, err := a.config.Store.ReserveRange(ctx, key, 0, count, expireAt)
		if err != nil {
			return err
		}
		r = codegen.Range{Start: start, End: end}
		return nil
	})
	if err != nil {
		return codegen.Range{}, err
	}

	a.config.Collector.AddSerialRangeValues(string(policy), r.Len())
	if a.config.Logger != nil {
		a.config.Logger.Debug(ctx, "serial range allocated", "key", key, "start", r.Start, "end", r.End)
	}
	return r, nil
}

// Reset removes the counter of the current window, so the next allocation
// starts again from the segment's start value.
func (a *Allocator) Reset(ctx context.Context, ruleID string, segmentIndex int, policy codegen.ResetPolicy) error {
	if err := validateTarget(ruleID, segmentIndex, policy); err != nil {
		return err
	}

	key := codegen.NewSequenceKey(ruleID, segmentIndex, policy, a.now()).String()
	var deleted int
	err := a.call(ctx, "reset", key, func(ctx context.Context) error {
		n, err := a.config.Store.Delete(ctx, key)
		deleted = n
		return err
	})
	if err != nil {
		return err
	}

	a.config.Collector.AddSerialResets(deleted)
	if a.config.Logger != nil {
		a.config.Logger.Info(ctx, "serial reset", "key", key, "existed", deleted > 0)
	}
	return nil
}

// ResetAll removes every counter of a rule across all segments and windows.
// Returns the number of counters removed.
func (a *Allocator) ResetAll(ctx context.Context, ruleID string) (int, error) {
	if ruleID == "" {
		return 0, codegen.NewValidationError("ruleId", "must not be empty")
	}
	return a.deletePrefix(ctx, "reset_all", codegen.RulePrefix(ruleID), func(k codegen.SequenceKey) bool {
		return k.RuleID == ruleID
	})
}

// ResetPreview removes every preview counter.
func (a *Allocator) ResetPreview(ctx context.Context) (int, error) {
	return a.deletePrefix(ctx, "reset_preview", string(codegen.ScopePreview)+":", func(k codegen.SequenceKey) bool {
		return k.Scope == codegen.ScopePreview
	})
}

// deletePrefix deletes the keys under prefix that parse and satisfy match.
func (a *Allocator) deletePrefix(ctx context.Context, op, prefix string, match func(codegen.SequenceKey) bool) (int, error) {
	var scanned []string
	err := a.call(ctx, op, prefix, func(ctx context.Context) error {
		k, err := a.config.Store.ScanPrefix(ctx, prefix)
		scanned = k
		return err
	})
	if err != nil {
		return 0, err
	}

	keys := scanned[:0]
	for _, key := range scanned {
		if parsed, err := codegen.ParseSequenceKey(key); err == nil && match(parsed) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var deleted int
	err = a.call(ctx, op, prefix, func(ctx context.Context) error {
		n, err := a.config.Store.Delete(ctx, keys...)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}

	a.config.Collector.AddSerialResets(deleted)
	if a.config.Logger != nil {
		a.config.Logger.Info(ctx, "serial counters reset", "prefix", prefix, "count", deleted)
	}
	return deleted, nil
}

// SetValue overwrites the counter of the current window. The next allocation
// returns value+1. The counter's expiry is renewed.
func (a *Allocator) SetValue(ctx context.Context, ruleID string, segmentIndex int, policy codegen.ResetPolicy, value int64) error {
	if err := validateTarget(ruleID, segmentIndex, policy); err != nil {
		return err
	}
	if value < 0 {
		return codegen.NewValidationError("value", "must not be negative")
	}

	now := a.now()
	key := codegen.NewSequenceKey(ruleID, segmentIndex, policy, now).String()
	expireAt := policy.ExpiresAt(now, a.config.Lease)
	err := a.call(ctx, "set_value", key, func(ctx context.Context) error {
		return a.config.Store.Set(ctx, key, value, expireAt)
	})
	if err != nil {
		return err
	}

	if a.config.Logger != nil {
		a.config.Logger.Info(ctx, "serial value set", "key", key, "value", value)
	}
	return nil
}

// Current returns the last value handed out in the current window, or 0 when
// nothing has been allocated yet.
func (a *Allocator) Current(ctx context.Context, ruleID string, segmentIndex int, policy codegen.ResetPolicy) (int64, error) {
	if err := validateTarget(ruleID, segmentIndex, policy); err != nil {
		return 0, err
	}

	key := codegen.NewSequenceKey(ruleID, segmentIndex, policy, a.now()).String()
	var value int64
	err := a.call(ctx, "get", key, func(ctx context.Context) error {
		c, err := a.config.Store.Get(ctx, key)
		if err != nil {
			return err
		}
		value = c.Value
		return nil
	})
	if errors.Is(err, store.ErrCounterNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Status lists the live counters of a rule, sorted by key. The snapshot is
// best effort: counters expiring or changing during the call may be missing
// or stale.
func (a *Allocator) Status(ctx context.Context, ruleID string) ([]codegen.SerialStatus, error) {
	if ruleID == "" {
		return nil, codegen.NewValidationError("ruleId", "must not be empty")
	}

	prefix := codegen.RulePrefix(ruleID)
	var keys []string
	err := a.call(ctx, "status", prefix, func(ctx context.Context) error {
		k, err := a.config.Store.ScanPrefix(ctx, prefix)
		keys = k
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	statuses := make([]codegen.SerialStatus, 0, len(keys))
	for _, key := range keys {
		parsed, err := codegen.ParseSequenceKey(key)
		if err != nil || parsed.RuleID != ruleID {
			// A rule whose id extends this one with a colon shares the prefix.
			continue
		}

		var counter store.Counter
		err = a.call(ctx, "status", key, func(ctx context.Context) error {
			c, err := a.config.Store.Get(ctx, key)
			counter = c
			return err
		})
		if errors.Is(err, store.ErrCounterNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		statuses = append(statuses, codegen.SerialStatus{
			Key:          key,
			SegmentIndex: parsed.SegmentIndex,
			Policy:       parsed.Policy,
			Window:       parsed.Window,
			CurrentValue: counter.Value,
			ExpiresAt:    counter.ExpiresAt,
			LastUpdate:   counter.UpdatedAt,
		})
	}

	return statuses, nil
}
