package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/getpup/codegen"
)

// Tracker owns the mutable state of one batch job. All reads and writes of
// the job go through its mutex; Snapshot hands out deep copies.
type Tracker struct {
	mu   sync.Mutex
	job  codegen.BatchJob
	done chan struct{}

	// token is cancelled when cancellation is requested or the job ends.
	token  context.Context
	cancel context.CancelFunc
}

func newTracker(job codegen.BatchJob) *Tracker {
	token, cancel := context.WithCancel(context.Background())
	return &Tracker{
		job:    job,
		done:   make(chan struct{}),
		token:  token,
		cancel: cancel,
	}
}

// ID returns the task id.
func (t *Tracker) ID() string {
	return t.job.TaskID
}

// Snapshot returns a deep copy of the current job state.
func (t *Tracker) Snapshot() codegen.BatchJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Clone()
}

// Update applies fn to the job under the lock and returns a copy of the
// result. Jobs in a terminal state are not modified.
func (t *Tracker) Update(fn func(job *codegen.BatchJob)) codegen.BatchJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.job.Status.Terminal() {
		fn(&t.job)
	}
	return t.job.Clone()
}

// Cancel requests cooperative cancellation. It returns true when the job is
// still PROCESSING, including when cancellation was already requested.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Status != codegen.JobProcessing {
		return false
	}
	t.cancel()
	return true
}

// CancelRequested reports whether Cancel has been called on a running job.
func (t *Tracker) CancelRequested() bool {
	return t.token.Err() != nil
}

// Token is cancelled once cancellation is requested or the job ends.
func (t *Tracker) Token() context.Context {
	return t.token
}

// Finish moves the job to a terminal status. Only the first call wins; later
// calls return the existing state and false.
func (t *Tracker) Finish(status codegen.JobStatus, errMsg string, at time.Time) (codegen.BatchJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job.Status.Terminal() {
		return t.job.Clone(), false
	}

	t.job.Status = status
	t.job.Error = errMsg
	t.job.EndedAt = at
	if status == codegen.JobCompleted {
		t.job.Progress = 100
	}
	t.cancel()
	close(t.done)
	return t.job.Clone(), true
}

// Done is closed when the job reaches a terminal status.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// expired reports whether a terminal job ended at least retention before now.
func (t *Tracker) expired(now time.Time, retention time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job.Status.Terminal() && !now.Before(t.job.EndedAt.Add(retention))
}
