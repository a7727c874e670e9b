package serial

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getpup/codegen"
	"github.com/getpup/codegen/store"
)

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, store.ErrCounterNotFound) ||
		errors.Is(err, store.ErrInvalidKey) ||
		errors.Is(err, store.ErrInvalidCount)
}

// call runs fn against the store. Every attempt gets its own OperationTimeout;
// failed attempts are retried with exponential backoff up to MaxRetries times.
// When the budget is exhausted the last error is wrapped in a
// codegen.StoreError. Cancellation of ctx stops retrying immediately.
func (a *Allocator) call(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.config.RetryInterval
	b.MaxInterval = 20 * a.config.RetryInterval
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.config.MaxRetries)), ctx)

	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
		defer cancel()

		started := time.Now()
		err := fn(callCtx)
		a.config.Collector.ObserveStoreLatency(op, time.Since(started).Seconds())
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		a.config.Collector.IncStoreErrors(op)
		return err
	}

	notify := func(err error, wait time.Duration) {
		a.config.Collector.IncStoreRetries(op)
		if a.config.Logger != nil {
			a.config.Logger.Debug(ctx, "retrying sequence store call", "operation", op, "key", key, "wait", wait, "error", err)
		}
	}

	err := backoff.RetryNotify(attempt, policy, notify)
	if err == nil || permanent(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if a.config.Logger != nil {
		a.config.Logger.Error(ctx, "sequence store unavailable", "operation", op, "key", key, "error", err)
	}
	return &codegen.StoreError{Op: op, Key: key, Err: err}
}
