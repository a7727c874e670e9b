// Package batch generates many codes at once, either in the caller's goroutine
// or as background jobs that report progress and can be cancelled between
// chunks.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/executor"
	"github.com/getpup/codegen/jobs"
	"github.com/getpup/codegen/metrics"
	"github.com/getpup/codegen/rules"
	"github.com/getpup/pupsourcing/es"
)

const (
	// DefaultMaxBatchSize bounds the number of items of one request.
	DefaultMaxBatchSize = 1000

	// DefaultChunkSize is the number of items processed between progress
	// updates and cancellation checks.
	DefaultChunkSize = 50

	// DefaultChunkDelay is the pause of background workers between chunks.
	DefaultChunkDelay = 10 * time.Millisecond

	// BatchIndexParam is added to every parameter map by GenerateByCount,
	// holding the 1-based ordinal of the item.
	BatchIndexParam = "_batchIndex"
)

const (
	modeSync  = "sync"
	modeAsync = "async"
)

// Config configures an Orchestrator.
type Config struct {
	// Runner generates single items (required).
	Runner executor.Runner

	// Rules resolves rule ids (required).
	Rules rules.Source

	// Registry tracks background jobs (default: a registry without cache).
	Registry *jobs.Registry

	// MaxBatchSize is the largest accepted request (default: 1000).
	MaxBatchSize int

	// ChunkSize is the number of items per chunk (default: 50).
	ChunkSize int

	// ChunkDelay is the pause between chunks of background jobs (default: 10ms).
	// A negative value disables the pause.
	ChunkDelay time.Duration

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	// Logger is for observability (optional).
	Logger es.Logger

	// Collector records batch metrics (optional).
	Collector *metrics.Collector
}

// Orchestrator runs batch generation requests.
type Orchestrator struct {
	config  Config
	workers sync.WaitGroup
}

// New creates a new Orchestrator with the given configuration.
// Applies default values for unset fields.
func New(cfg Config) *Orchestrator {
	if cfg.Registry == nil {
		cfg.Registry = jobs.NewRegistry(jobs.Config{Logger: cfg.Logger})
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkDelay == 0 {
		cfg.ChunkDelay = DefaultChunkDelay
	}
	if cfg.ChunkDelay < 0 {
		cfg.ChunkDelay = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Orchestrator{config: cfg}
}

// Registry returns the job registry used for background jobs.
func (o *Orchestrator) Registry() *jobs.Registry {
	return o.config.Registry
}

// prepare validates a request and resolves its rule before any work starts.
func (o *Orchestrator) prepare(ctx context.Context, ruleID string, size int, opts codegen.RenderOptions) (codegen.CodeRule, codegen.RenderOptions, error) {
	if ruleID == "" {
		return codegen.CodeRule{}, opts, codegen.NewValidationError("ruleId", "must not be empty")
	}
	if err := o.validateSize("paramsList", size); err != nil {
		return codegen.CodeRule{}, opts, err
	}
	if err := opts.Validate(); err != nil {
		return codegen.CodeRule{}, opts, err
	}

	rule, err := o.config.Rules.GetRule(ctx, ruleID)
	if err != nil {
		return codegen.CodeRule{}, opts, err
	}
	return rule, opts.WithDefaults(), nil
}

func (o *Orchestrator) validateSize(field string, size int) error {
	if size <= 0 {
		return &codegen.ValidationError{Field: field, Reason: "must contain at least one item", Err: codegen.ErrEmptyBatch}
	}
	if size > o.config.MaxBatchSize {
		return &codegen.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%d items exceed the maximum of %d", size, o.config.MaxBatchSize),
			Err:    codegen.ErrBatchTooLarge,
		}
	}
	return nil
}

// chunk is the outcome of one processed slice of a batch.
type chunk struct {
	items  []codegen.Item
	errors []codegen.ItemError
	fatal  error
}

func (c chunk) processed() int {
	return len(c.items) + len(c.errors)
}

// runChunk generates items [from, to). Item failures are recorded by index; a
// store outage stops the chunk and is returned as fatal.
func (o *Orchestrator) runChunk(ctx context.Context, rule codegen.CodeRule, paramsList []codegen.Params, from, to int, opts codegen.RenderOptions) chunk {
	var c chunk
	for i := from; i < to; i++ {
		item, err := o.config.Runner.Generate(ctx, rule, paramsList[i], opts)
		if err != nil {
			if errors.Is(err, codegen.ErrStoreUnavailable) {
				c.fatal = err
				break
			}
			c.errors = append(c.errors, codegen.ItemError{
				Index:  i,
				Params: paramsList[i].StringMap(),
				Error:  err.Error(),
			})
			continue
		}
		item.Index = i
		c.items = append(c.items, item)
	}

	o.config.Collector.AddBatchItems(len(c.items), len(c.errors))
	return c
}

// GenerateSync processes the whole request in the calling goroutine.
// Failing items are reported in the result and do not stop the batch.
// A sequence store outage aborts the batch; so does cancellation of ctx, which
// is observed between chunks. In both cases the partial result is returned
// together with the error.
func (o *Orchestrator) GenerateSync(ctx context.Context, ruleID string, paramsList []codegen.Params, opts codegen.RenderOptions) (codegen.BatchResult, error) {
	rule, opts, err := o.prepare(ctx, ruleID, len(paramsList), opts)
	if err != nil {
		return codegen.BatchResult{}, err
	}

	started := o.config.Clock()
	result := codegen.BatchResult{
		Total:     len(paramsList),
		Items:     make([]codegen.Item, 0, len(paramsList)),
		Errors:    make([]codegen.ItemError, 0),
		StartedAt: started,
	}
	finish := func(status codegen.JobStatus, err error) (codegen.BatchResult, error) {
		result.EndedAt = o.config.Clock()
		result.Duration = result.EndedAt.Sub(started)
		o.config.Collector.IncBatchJobs(string(status))
		o.config.Collector.ObserveBatchDuration(modeSync, result.Duration.Seconds())
		if o.config.Logger != nil {
			o.config.Logger.Info(ctx, "batch finished", "mode", modeSync, "rule", ruleID, "status", status,
				"total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
		}
		return result, err
	}

	// In-flight chunks run to completion even when ctx is cancelled.
	work := context.WithoutCancel(ctx)
	for from := 0; from < len(paramsList); from += o.config.ChunkSize {
		if err := ctx.Err(); err != nil {
			return finish(codegen.JobCancelled, err)
		}

		to := min(from+o.config.ChunkSize, len(paramsList))
		c := o.runChunk(work, rule, paramsList, from, to, opts)
		result.Items = append(result.Items, c.items...)
		result.Errors = append(result.Errors, c.errors...)
		result.Succeeded += len(c.items)
		result.Failed += len(c.errors)

		if c.fatal != nil {
			if o.config.Logger != nil {
				o.config.Logger.Error(ctx, "batch aborted", "mode", modeSync, "rule", ruleID, "error", c.fatal)
			}
			return finish(codegen.JobFailed, c.fatal)
		}
	}

	return finish(codegen.JobCompleted, nil)
}

// GenerateAsync validates the request, starts a background job and returns
// its task id. ctx only bounds the validation; the job itself keeps running
// until it completes, fails or is cancelled through Cancel.
func (o *Orchestrator) GenerateAsync(ctx context.Context, ruleID string, paramsList []codegen.Params, opts codegen.RenderOptions) (string, error) {
	rule, opts, err := o.prepare(ctx, ruleID, len(paramsList), opts)
	if err != nil {
		return "", err
	}

	list := make([]codegen.Params, len(paramsList))
	copy(list, paramsList)

	tracker := o.config.Registry.Create(ruleID, len(list), opts)
	o.config.Registry.Publish(ctx, tracker.Snapshot())
	o.config.Collector.IncActiveBatchJobs()
	if o.config.Logger != nil {
		o.config.Logger.Info(ctx, "batch job started", "task", tracker.ID(), "rule", ruleID, "total", len(list))
	}

	o.workers.Add(1)
	go o.work(context.WithoutCancel(ctx), tracker, rule, list, opts)

	return tracker.ID(), nil
}

func (o *Orchestrator) work(ctx context.Context, tracker *jobs.Tracker, rule codegen.CodeRule, paramsList []codegen.Params, opts codegen.RenderOptions) {
	defer o.workers.Done()
	defer o.config.Collector.DecActiveBatchJobs()

	defer func() {
		if r := recover(); r != nil {
			o.end(ctx, tracker, codegen.JobFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	total := len(paramsList)
	for from := 0; from < total; from += o.config.ChunkSize {
		to := min(from+o.config.ChunkSize, total)
		c := o.runChunk(ctx, rule, paramsList, from, to, opts)

		snapshot := tracker.Update(func(job *codegen.BatchJob) {
			job.Items = append(job.Items, c.items...)
			job.Errors = append(job.Errors, c.errors...)
			job.Succeeded += len(c.items)
			job.Failed += len(c.errors)
			job.Processed += c.processed()
			job.Progress = progress(job.Processed, job.Total)
		})
		o.config.Registry.Publish(ctx, snapshot)

		if c.fatal != nil {
			o.end(ctx, tracker, codegen.JobFailed, c.fatal.Error())
			return
		}
		if tracker.CancelRequested() {
			o.end(ctx, tracker, codegen.JobCancelled, "")
			return
		}
		if to < total && !o.pause(tracker) {
			o.end(ctx, tracker, codegen.JobCancelled, "")
			return
		}
	}

	o.end(ctx, tracker, codegen.JobCompleted, "")
}

// pause waits ChunkDelay. It returns false when cancellation was requested
// during the pause.
func (o *Orchestrator) pause(tracker *jobs.Tracker) bool {
	if o.config.ChunkDelay > 0 {
		timer := time.NewTimer(o.config.ChunkDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-tracker.Token().Done():
		}
	}
	return !tracker.CancelRequested()
}

func (o *Orchestrator) end(ctx context.Context, tracker *jobs.Tracker, status codegen.JobStatus, errMsg string) {
	job, ok := tracker.Finish(status, errMsg, o.config.Clock())
	if !ok {
		return
	}
	o.config.Registry.Publish(ctx, job)

	o.config.Collector.IncBatchJobs(string(status))
	o.config.Collector.ObserveBatchDuration(modeAsync, job.EndedAt.Sub(job.StartedAt).Seconds())
	if o.config.Logger != nil {
		if status == codegen.JobFailed {
			o.config.Logger.Error(ctx, "batch job failed", "task", job.TaskID, "processed", job.Processed, "error", errMsg)
		} else {
			o.config.Logger.Info(ctx, "batch job finished", "task", job.TaskID, "status", status,
				"processed", job.Processed, "succeeded", job.Succeeded, "failed", job.Failed)
		}
	}
}

func progress(processed, total int) float64 {
	if total == 0 {
		return 100
	}
	return math.Round(float64(processed)*10000/float64(total)) / 100
}

// Status returns a snapshot of a job.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (codegen.BatchJob, error) {
	return o.config.Registry.Snapshot(ctx, taskID)
}

// Cancel requests cancellation of a running job. The job stops at its next
// chunk boundary. Returns false for unknown or finished jobs.
func (o *Orchestrator) Cancel(taskID string) bool {
	ok := o.config.Registry.Cancel(taskID)
	if ok && o.config.Logger != nil {
		o.config.Logger.Info(context.Background(), "batch job cancellation requested", "task", taskID)
	}
	return ok
}

// Wait blocks until a job reaches a terminal status or ctx is done.
// Jobs owned by other processes are polled through the registry cache.
func (o *Orchestrator) Wait(ctx context.Context, taskID string) (codegen.BatchJob, error) {
	if tracker, ok := o.config.Registry.Get(taskID); ok {
		select {
		case <-tracker.Done():
			return tracker.Snapshot(), nil
		case <-ctx.Done():
			return tracker.Snapshot(), ctx.Err()
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := o.config.Registry.Snapshot(ctx, taskID)
		if err != nil || job.Status.Terminal() {
			return job, err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return job, ctx.Err()
		}
	}
}

// GenerateByCount generates count codes from the same parameters. Every item
// gets its own copy of baseParams with BatchIndexParam set to its 1-based
// ordinal, so Field segments can tell the items apart.
func (o *Orchestrator) GenerateByCount(ctx context.Context, ruleID string, baseParams codegen.Params, count int, opts codegen.RenderOptions) (codegen.BatchResult, error) {
	if err := o.validateSize("count", count); err != nil {
		return codegen.BatchResult{}, err
	}

	paramsList := make([]codegen.Params, count)
	for i := range paramsList {
		p := baseParams.Clone()
		p[BatchIndexParam] = i + 1
		paramsList[i] = p
	}
	return o.GenerateSync(ctx, ruleID, paramsList, opts)
}

// Shutdown requests cancellation of every running job and waits for the
// workers to stop, or for ctx to be done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	for _, tracker := range o.config.Registry.Running() {
		tracker.Cancel()
	}

	done := make(chan struct{})
	go func() {
		o.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
