// Package jobs keeps track of asynchronous batch jobs: an in-process registry
// of live trackers and an optional cache that shares snapshots with other
// processes.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/pupsourcing/es"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// DefaultRetention is how long finished jobs stay queryable.
const DefaultRetention = time.Hour

// TaskIDPrefix starts every task id.
const TaskIDPrefix = "batch_"

// Config configures a Registry.
type Config struct {
	// Cache mirrors job snapshots for other processes (optional).
	Cache Cache

	// Retention is how long terminal jobs are kept (default: 1h).
	Retention time.Duration

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	// Logger is for observability (optional).
	Logger es.Logger
}

// Registry is the authoritative store of the jobs started by this process.
type Registry struct {
	config Config
	jobs   cmap.ConcurrentMap[string, *Tracker]
}

// NewRegistry creates a new Registry with the given configuration.
func NewRegistry(cfg Config) *Registry {
	if cfg.Retention == 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Registry{
		config: cfg,
		jobs:   cmap.New[*Tracker](),
	}
}

// Create registers a new PROCESSING job and returns its tracker.
func (r *Registry) Create(ruleID string, total int, opts codegen.RenderOptions) *Tracker {
	job := codegen.BatchJob{
		TaskID:    TaskIDPrefix + uuid.NewString(),
		RuleID:    ruleID,
		Status:    codegen.JobProcessing,
		Total:     total,
		Items:     make([]codegen.Item, 0, total),
		Errors:    make([]codegen.ItemError, 0),
		Render:    opts,
		StartedAt: r.config.Clock(),
	}
	t := newTracker(job)
	r.jobs.Set(job.TaskID, t)
	return t
}

// Get returns the local tracker of a job.
func (r *Registry) Get(taskID string) (*Tracker, bool) {
	return r.jobs.Get(taskID)
}

// Snapshot returns a copy of a job. Jobs started by other processes are read
// from the cache.
func (r *Registry) Snapshot(ctx context.Context, taskID string) (codegen.BatchJob, error) {
	if t, ok := r.jobs.Get(taskID); ok {
		return t.Snapshot(), nil
	}

	if r.config.Cache != nil {
		job, err := r.config.Cache.Get(ctx, taskID)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			if r.config.Logger != nil {
				r.config.Logger.Error(ctx, "job cache read failed", "task", taskID, "error", err)
			}
		}
	}

	return codegen.BatchJob{}, &codegen.NotFoundError{Kind: "task", ID: taskID}
}

// Publish mirrors a job snapshot to the cache. Cache failures are logged and
// otherwise ignored; the local registry stays authoritative.
func (r *Registry) Publish(ctx context.Context, job codegen.BatchJob) {
	if r.config.Cache == nil {
		return
	}
	if err := r.config.Cache.Put(ctx, job, r.config.Retention); err != nil && r.config.Logger != nil {
		r.config.Logger.Error(ctx, "job cache write failed", "task", job.TaskID, "error", err)
	}
}

// Cancel requests cancellation of a local job. It returns false for unknown
// or finished jobs.
func (r *Registry) Cancel(taskID string) bool {
	t, ok := r.jobs.Get(taskID)
	if !ok {
		return false
	}
	return t.Cancel()
}

// Running returns the trackers of all jobs still PROCESSING.
func (r *Registry) Running() []*Tracker {
	var running []*Tracker
	for item := range r.jobs.IterBuffered() {
		select {
		case <-item.Val.Done():
		default:
			running = append(running, item.Val)
		}
	}
	return running
}

// Sweep removes terminal jobs that ended at least Retention before now.
// Returns the number of jobs removed.
func (r *Registry) Sweep(now time.Time) int {
	removed := 0
	for _, id := range r.jobs.Keys() {
		t, ok := r.jobs.Get(id)
		if !ok || !t.expired(now, r.config.Retention) {
			continue
		}
		if r.jobs.RemoveCb(id, func(_ string, v *Tracker, exists bool) bool { return exists && v == t }) {
			removed++
		}
	}
	return removed
}

// Len returns the number of jobs held locally.
func (r *Registry) Len() int {
	return r.jobs.Count()
}
