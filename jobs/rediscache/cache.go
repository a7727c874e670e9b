// Package rediscache shares batch job snapshots through Redis so that any
// process can answer status queries for jobs started elsewhere.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/jobs"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the job keys.
const DefaultPrefix = "codegen:batch:task:"

// Cache implements jobs.Cache on Redis. Each job is one string key holding
// the JSON snapshot, written with a millisecond TTL.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

var _ jobs.Cache = (*Cache)(nil)

// New creates a Cache with the default key prefix.
func New(client redis.UniversalClient) *Cache {
	return NewWithPrefix(client, DefaultPrefix)
}

// NewWithPrefix creates a Cache with a custom key prefix.
func NewWithPrefix(client redis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(taskID string) string {
	return c.prefix + taskID
}

// Put implements jobs.Cache.
func (c *Cache) Put(ctx context.Context, job codegen.BatchJob, ttl time.Duration) error {
	data, err := jobs.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := c.client.Set(ctx, c.key(job.TaskID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

// Get implements jobs.Cache.
func (c *Cache) Get(ctx context.Context, taskID string) (codegen.BatchJob, error) {
	data, err := c.client.Get(ctx, c.key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return codegen.BatchJob{}, jobs.ErrJobNotFound
	}
	if err != nil {
		return codegen.BatchJob{}, fmt.Errorf("failed to load job: %w", err)
	}

	job, err := jobs.Unmarshal(data)
	if err != nil {
		return codegen.BatchJob{}, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}
