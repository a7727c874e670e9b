package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getpup/codegen"
	jsoniter "github.com/json-iterator/go"
)

// ErrJobNotFound is returned by caches that hold no entry for a task id.
var ErrJobNotFound = errors.New("job not found in cache")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cache shares job snapshots between processes. Entries expire after ttl.
type Cache interface {
	Put(ctx context.Context, job codegen.BatchJob, ttl time.Duration) error
	Get(ctx context.Context, taskID string) (codegen.BatchJob, error)
}

// Marshal encodes the full job, items and errors included.
func Marshal(job codegen.BatchJob) ([]byte, error) {
	return json.Marshal(job)
}

// Unmarshal decodes a job encoded by Marshal.
func Unmarshal(data []byte) (codegen.BatchJob, error) {
	var job codegen.BatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return codegen.BatchJob{}, err
	}
	return job, nil
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache. It stores the encoded form so that
// readers never share memory with the writer.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Put implements Cache.
func (c *MemoryCache) Put(ctx context.Context, job codegen.BatchJob, ttl time.Duration) error {
	data, err := Marshal(job)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[job.TaskID] = cacheEntry{data: data, expiresAt: c.now().Add(ttl)}
	return nil
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, taskID string) (codegen.BatchJob, error) {
	c.mu.Lock()
	entry, ok := c.entries[taskID]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, taskID)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return codegen.BatchJob{}, ErrJobNotFound
	}
	return Unmarshal(entry.data)
}
