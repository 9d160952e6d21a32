// Package memory provides in-memory store implementations. Suitable
// for single-node deployments and tests; the per-shard mutex is the
// transaction primitive that serializes check-and-increment per key.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/voxbridge/voxbridge/domain/ratelimit"
	"github.com/voxbridge/voxbridge/ports"
)

// rateLimitShard is a single shard of the rate limit store.
type rateLimitShard struct {
	mu      sync.Mutex
	records map[string]ratelimit.Record
}

// RateLimitStore is a sharded in-memory implementation of
// ports.RateLimitStore. Sharding reduces lock contention so updates
// for different keys rarely block each other; updates for the same
// key always serialize on the shard mutex.
type RateLimitStore struct {
	shards    []*rateLimitShard
	numShards int
	cleanup   *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// RateLimitConfig configures the in-memory rate limit store.
type RateLimitConfig struct {
	NumShards       int           // default 32
	CleanupInterval time.Duration // default 5m
}

// NewRateLimitStore creates a new sharded in-memory rate limit store.
func NewRateLimitStore(cfg RateLimitConfig) *RateLimitStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	s := &RateLimitStore{
		shards:    make([]*rateLimitShard, cfg.NumShards),
		numShards: cfg.NumShards,
		done:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &rateLimitShard{records: make(map[string]ratelimit.Record)}
	}

	s.cleanup = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

// getShard returns the shard for a key using consistent hashing.
func (s *RateLimitStore) getShard(key string) *rateLimitShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Update atomically applies fn to the record for key.
func (s *RateLimitStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (ratelimit.Record, error) {
	if err := ctx.Err(); err != nil {
		return ratelimit.Record{}, err
	}

	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	updated, commit := fn(shard.records[key])
	if commit {
		shard.records[key] = updated
	}
	return updated, nil
}

// Get retrieves the current record without modifying it.
func (s *RateLimitStore) Get(ctx context.Context, key string) (ratelimit.Record, error) {
	if err := ctx.Err(); err != nil {
		return ratelimit.Record{}, err
	}

	shard := s.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return shard.records[key], nil
}

// cleanupLoop periodically removes records whose windows all expired.
func (s *RateLimitStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanup.C:
			s.doCleanup(time.Now())
		case <-s.done:
			return
		}
	}
}

// doCleanup removes records idle past their longest window. Stale
// records are harmless (they read as empty) so this only bounds memory.
func (s *RateLimitStore) doCleanup(now time.Time) {
	cutoff := now.Add(-time.Hour)
	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, rec := range shard.records {
			if !rec.Day.ResetAt.IsZero() && rec.Day.ResetAt.Before(cutoff) {
				delete(shard.records, key)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (s *RateLimitStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cleanup.Stop()
	})
	return nil
}

// Len returns the total number of records across all shards (for testing).
func (s *RateLimitStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.records)
		shard.mu.Unlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
