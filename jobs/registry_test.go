package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getpup/codegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCache fails every call.
type failingCache struct{}

func (failingCache) Put(context.Context, codegen.BatchJob, time.Duration) error {
	return errors.New("cache down")
}

func (failingCache) Get(context.Context, string) (codegen.BatchJob, error) {
	return codegen.BatchJob{}, errors.New("cache down")
}

// mockLogger captures log calls for testing
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, args ...interface{}) {}

func (m *mockLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func TestNewRegistry_AppliesDefaults(t *testing.T) {
	r := NewRegistry(Config{})

	assert.Equal(t, DefaultRetention, r.config.Retention)
	assert.NotNil(t, r.config.Clock)
}

func TestRegistry_CreateStartsProcessing(t *testing.T) {
	started := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(Config{Clock: func() time.Time { return started }})
	opts := codegen.RenderOptions{Symbology: codegen.SymbologyQR, Width: 300, Height: 150}

	tr := r.Create("R1", 10, opts)

	assert.True(t, strings.HasPrefix(tr.ID(), TaskIDPrefix))
	job := tr.Snapshot()
	assert.Equal(t, codegen.JobProcessing, job.Status)
	assert.Equal(t, "R1", job.RuleID)
	assert.Equal(t, 10, job.Total)
	assert.Equal(t, opts, job.Render)
	assert.Equal(t, started, job.StartedAt)
	assert.NotNil(t, job.Items)
	assert.NotNil(t, job.Errors)

	got, ok := r.Get(tr.ID())
	assert.True(t, ok)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_TaskIDsAreUnique(t *testing.T) {
	r := NewRegistry(Config{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := r.Create("R1", 1, codegen.RenderOptions{}).ID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestTracker_SnapshotIsDeepCopy(t *testing.T) {
	r := NewRegistry(Config{})
	tr := r.Create("R1", 1, codegen.RenderOptions{})
	tr.Update(func(job *codegen.BatchJob) {
		job.Items = append(job.Items, codegen.Item{Code: "A", Image: []byte{1}})
	})

	snap := tr.Snapshot()
	snap.Items[0].Image[0] = 9
	snap.Items[0].Code = "changed"

	again := tr.Snapshot()
	assert.Equal(t, "A", again.Items[0].Code)
	assert.Equal(t, byte(1), again.Items[0].Image[0])
}

func TestTracker_CancelOnlyWhileProcessing(t *testing.T) {
	r := NewRegistry(Config{})
	tr := r.Create("R1", 1, codegen.RenderOptions{})

	assert.False(t, tr.CancelRequested())
	assert.True(t, r.Cancel(tr.ID()))
	assert.True(t, tr.CancelRequested())
	assert.True(t, r.Cancel(tr.ID()), "still processing")

	_, ok := tr.Finish(codegen.JobCancelled, "", time.Now())
	require.True(t, ok)
	assert.False(t, r.Cancel(tr.ID()))
	assert.False(t, r.Cancel("batch_unknown"))
}

func TestTracker_FinishIsFinal(t *testing.T) {
	r := NewRegistry(Config{})
	tr := r.Create("R1", 2, codegen.RenderOptions{})
	ended := time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

	job, ok := tr.Finish(codegen.JobFailed, "store down", ended)
	require.True(t, ok)
	assert.Equal(t, codegen.JobFailed, job.Status)
	assert.Equal(t, "store down", job.Error)
	assert.Equal(t, ended, job.EndedAt)

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done not closed")
	}

	job, ok = tr.Finish(codegen.JobCompleted, "", time.Now())
	assert.False(t, ok)
	assert.Equal(t, codegen.JobFailed, job.Status)

	tr.Update(func(job *codegen.BatchJob) { job.Processed = 2 })
	assert.Equal(t, 0, tr.Snapshot().Processed)
}

func TestTracker_CompletedSetsFullProgress(t *testing.T) {
	r := NewRegistry(Config{})
	tr := r.Create("R1", 3, codegen.RenderOptions{})

	job, _ := tr.Finish(codegen.JobCompleted, "", time.Now())

	assert.Equal(t, float64(100), job.Progress)
}

func TestRegistry_SnapshotFallsBackToCache(t *testing.T) {
	cache := NewMemoryCache()
	producer := NewRegistry(Config{Cache: cache})
	consumer := NewRegistry(Config{Cache: cache})
	ctx := context.Background()

	tr := producer.Create("R1", 4, codegen.RenderOptions{})
	job := tr.Update(func(job *codegen.BatchJob) {
		job.Processed = 2
		job.Progress = 50
	})
	producer.Publish(ctx, job)

	got, err := consumer.Snapshot(ctx, tr.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Processed)
	assert.Equal(t, float64(50), got.Progress)
}

func TestRegistry_SnapshotUnknownTask(t *testing.T) {
	r := NewRegistry(Config{Cache: NewMemoryCache()})

	_, err := r.Snapshot(context.Background(), "batch_missing")

	assert.ErrorIs(t, err, codegen.ErrNotFound)
	var nf *codegen.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Kind)
}

func TestRegistry_CacheFailuresAreLogged(t *testing.T) {
	logger := &mockLogger{}
	r := NewRegistry(Config{Cache: failingCache{}, Logger: logger})
	ctx := context.Background()

	r.Publish(ctx, codegen.BatchJob{TaskID: "batch_1"})
	_, err := r.Snapshot(ctx, "batch_1")

	assert.ErrorIs(t, err, codegen.ErrNotFound)
	assert.Len(t, logger.errors, 2)
}

func TestRegistry_SweepRemovesExpiredTerminalJobs(t *testing.T) {
	r := NewRegistry(Config{Retention: time.Hour})
	ended := time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

	old := r.Create("R1", 1, codegen.RenderOptions{})
	old.Finish(codegen.JobCompleted, "", ended)
	recent := r.Create("R1", 1, codegen.RenderOptions{})
	recent.Finish(codegen.JobCancelled, "", ended.Add(30*time.Minute))
	running := r.Create("R1", 1, codegen.RenderOptions{})

	removed := r.Sweep(ended.Add(time.Hour))

	assert.Equal(t, 1, removed)
	_, ok := r.Get(old.ID())
	assert.False(t, ok)
	_, ok = r.Get(recent.ID())
	assert.True(t, ok)
	_, ok = r.Get(running.ID())
	assert.True(t, ok)
}

func TestRegistry_Running(t *testing.T) {
	r := NewRegistry(Config{})
	a := r.Create("R1", 1, codegen.RenderOptions{})
	b := r.Create("R1", 1, codegen.RenderOptions{})
	b.Finish(codegen.JobCompleted, "", time.Now())

	running := r.Running()

	require.Len(t, running, 1)
	assert.Equal(t, a.ID(), running[0].ID())
}
