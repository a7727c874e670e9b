// Package redisstore implements store.SequenceStore on Redis.
//
// Every mutation runs as one Lua script, so concurrent callers in any number of
// processes observe a single total order per counter. A counter and its
// metadata hash share a hash tag and therefore a cluster slot.
//
// go-redis only honors context deadlines when the client is created with
// Options.ContextTimeoutEnabled set; otherwise its own read and write timeouts apply.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getpup/codegen/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "codegen:"

const updatedField = "updated"

var incrementOrSeedScript = redis.NewScript(`
local v
if redis.call('exists', KEYS[1]) == 0 then
	redis.call('set', KEYS[1], ARGV[1])
	v = tonumber(ARGV[1])
else
	v = redis.call('incr', KEYS[1])
end
redis.call('hset', KEYS[2], 'updated', ARGV[3])
if tonumber(ARGV[2]) > 0 then
	redis.call('pexpireat', KEYS[1], ARGV[2])
	redis.call('pexpireat', KEYS[2], ARGV[2])
else
	redis.call('persist', KEYS[1])
	redis.call('persist', KEYS[2])
end
return v
`)

var reserveRangeScript = redis.NewScript(`
if redis.call('exists', KEYS[1]) == 0 then
	redis.call('set', KEYS[1], ARGV[1])
end
local stop = redis.call('incrby', KEYS[1], ARGV[2])
redis.call('hset', KEYS[2], 'updated', ARGV[4])
if tonumber(ARGV[3]) > 0 then
	redis.call('pexpireat', KEYS[1], ARGV[3])
	redis.call('pexpireat', KEYS[2], ARGV[3])
else
	redis.call('persist', KEYS[1])
	redis.call('persist', KEYS[2])
end
return {stop - tonumber(ARGV[2]) + 1, stop}
`)

var setScript = redis.NewScript(`
redis.call('set', KEYS[1], ARGV[1])
redis.call('hset', KEYS[2], 'updated', ARGV[3])
if tonumber(ARGV[2]) > 0 then
	redis.call('pexpireat', KEYS[1], ARGV[2])
	redis.call('pexpireat', KEYS[2], ARGV[2])
else
	redis.call('persist', KEYS[2])
end
return 1
`)

// Config configures a Store.
type Config struct {
	// Prefix namespaces all keys (default: "codegen:").
	Prefix string

	// ScanCount is the COUNT hint passed to SCAN (default: 100).
	ScanCount int64

	// Clock is the source of update timestamps (default: time.Now).
	Clock func() time.Time
}

// Store is a Redis implementation of SequenceStore.
type Store struct {
	client redis.UniversalClient
	config Config
}

// New creates a Redis store with default configuration.
func New(client redis.UniversalClient) *Store {
	return NewWithConfig(client, Config{})
}

// NewWithConfig creates a Redis store with custom configuration.
func NewWithConfig(client redis.UniversalClient, config Config) *Store {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.ScanCount <= 0 {
		config.ScanCount = 100
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Store{client: client, config: config}
}

func (s *Store) counterKey(key string) string {
	return s.config.Prefix + "seq:{" + key + "}"
}

func (s *Store) metaKey(key string) string {
	return s.config.Prefix + "meta:{" + key + "}"
}

func (s *Store) logicalKey(redisKey string) (string, bool) {
	head := s.config.Prefix + "seq:{"
	if !strings.HasPrefix(redisKey, head) || !strings.HasSuffix(redisKey, "}") {
		return "", false
	}
	return redisKey[len(head) : len(redisKey)-1], true
}

func expiryArg(expireAt time.Time) int64 {
	if expireAt.IsZero() {
		return 0
	}
	ms := expireAt.UnixMilli()
	if ms <= 0 {
		// PEXPIREAT with a past timestamp deletes the key, which is what an
		// expiry before the epoch means.
		return 1
	}
	return ms
}

// IncrementOrSeed implements SequenceStore.
func (s *Store) IncrementOrSeed(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
	if key == "" {
		return 0, store.ErrInvalidKey
	}

	v, err := incrementOrSeedScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.metaKey(key)},
		seed, expiryArg(expireAt), s.config.Clock().UnixMilli(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	return v, nil
}

// ReserveRange implements SequenceStore.
func (s *Store) ReserveRange(ctx context.Context, key string, base, count int64, expireAt time.Time) (int64, int64, error) {
	if key == "" {
		return 0, 0, store.ErrInvalidKey
	}
	if count <= 0 {
		return 0, 0, store.ErrInvalidCount
	}

	vals, err := reserveRangeScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.metaKey(key)},
		base, count, expiryArg(expireAt), s.config.Clock().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reserve range: %w", err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("failed to reserve range: unexpected reply %v", vals)
	}

	return vals[0], vals[1], nil
}

// Set implements SequenceStore.
func (s *Store) Set(ctx context.Context, key string, value int64, expireAt time.Time) error {
	if key == "" {
		return store.ErrInvalidKey
	}

	err := setScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.metaKey(key)},
		value, expiryArg(expireAt), s.config.Clock().UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}

	return nil
}

// Get implements SequenceStore.
func (s *Store) Get(ctx context.Context, key string) (store.Counter, error) {
	var (
		valueCmd   *redis.StringCmd
		ttlCmd     *redis.DurationCmd
		updatedCmd *redis.StringCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		valueCmd = pipe.Get(ctx, s.counterKey(key))
		ttlCmd = pipe.PTTL(ctx, s.counterKey(key))
		updatedCmd = pipe.HGet(ctx, s.metaKey(key), updatedField)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return store.Counter{}, fmt.Errorf("failed to get counter: %w", err)
	}

	value, err := valueCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return store.Counter{}, store.ErrCounterNotFound
	}
	if err != nil {
		return store.Counter{}, fmt.Errorf("failed to get counter: %w", err)
	}

	counter := store.Counter{Key: key, Value: value}
	if ttl := ttlCmd.Val(); ttl > 0 {
		counter.ExpiresAt = s.config.Clock().Add(ttl)
	}
	if ms, err := strconv.ParseInt(updatedCmd.Val(), 10, 64); err == nil {
		counter.UpdatedAt = time.UnixMilli(ms)
	}

	return counter, nil
}

// Delete implements SequenceStore.
func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, 0, len(keys))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			cmds = append(cmds, pipe.Del(ctx, s.counterKey(key)))
			pipe.Del(ctx, s.metaKey(key))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete counters: %w", err)
	}

	deleted := 0
	for _, cmd := range cmds {
		deleted += int(cmd.Val())
	}
	return deleted, nil
}

// ScanPrefix implements SequenceStore.
// On a cluster client every master is scanned.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	match := s.config.Prefix + "seq:{" + escapeGlob(prefix) + "*"

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		keys = []string{}
	)
	scan := func(ctx context.Context, c redis.Cmdable) error {
		iter := c.Scan(ctx, 0, match, s.config.ScanCount).Iterator()
		for iter.Next(ctx) {
			key, ok := s.logicalKey(iter.Val())
			if !ok {
				continue
			}
			mu.Lock()
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
			mu.Unlock()
		}
		return iter.Err()
	}

	var err error
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
			return scan(ctx, c)
		})
	} else {
		err = scan(ctx, s.client)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}

	return keys, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
