package ratelimit

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// bucketState is a backend-independent view of one bucket.
type bucketState struct {
	tokens           float64
	totalRequests    int64
	rejectedRequests int64
	lastRefill       time.Time
}

// takeOutcome is the result of one consume attempt.
type takeOutcome struct {
	allowed bool
	state   bucketState
}

// bucketStore abstracts where bucket state lives. The in-memory store is the
// default; the Redis store shares state across server instances. Capacity and
// rate are passed on every call so progressive adjustments and rule updates
// apply without a separate sync step.
type bucketStore interface {
	// Take atomically refills and consumes n tokens for key.
	Take(ctx context.Context, key string, capacity, rate, n float64) (*takeOutcome, error)

	// Peek returns the refreshed bucket state without consuming.
	Peek(ctx context.Context, key string, capacity, rate float64) (*bucketState, error)

	// Reset refills the bucket to capacity.
	Reset(ctx context.Context, key string) error

	// RemoveByPrefix purges every bucket whose key starts with prefix.
	RemoveByPrefix(ctx context.Context, prefix string) error

	// Cleanup evicts buckets idle longer than maxIdle, returning the count.
	Cleanup(maxIdle time.Duration) int

	// Len returns the number of live buckets, or -1 when counting is not
	// supported cheaply.
	Len() int
}

// memoryStore keeps buckets in a bounded LRU map. Lazily created buckets are
// evicted either by LRU pressure or by the idle-cleanup loop, so the map
// never grows without bound across many distinct identifiers.
type memoryStore struct {
	buckets *lru.Cache[string, *TokenBucket]
	now     func() time.Time
}

func newMemoryStore(maxBuckets int) (*memoryStore, error) {
	if maxBuckets <= 0 {
		maxBuckets = 1
	}
	cache, err := lru.New[string, *TokenBucket](maxBuckets)
	if err != nil {
		return nil, err
	}
	return &memoryStore{buckets: cache, now: time.Now}, nil
}

func (s *memoryStore) getOrCreate(key string, capacity, rate float64) *TokenBucket {
	if bucket, ok := s.buckets.Get(key); ok {
		bucket.SetCapacity(capacity)
		bucket.SetRate(rate)
		return bucket
	}

	bucket := NewTokenBucket(capacity, rate)
	bucket.now = s.now
	bucket.lastRefill = s.now()
	bucket.lastAccess = bucket.lastRefill
	s.buckets.Add(key, bucket)
	return bucket
}

func (s *memoryStore) Take(ctx context.Context, key string, capacity, rate, n float64) (*takeOutcome, error) {
	bucket := s.getOrCreate(key, capacity, rate)
	allowed := bucket.Consume(n)
	snap := bucket.Snapshot()
	return &takeOutcome{
		allowed: allowed,
		state: bucketState{
			tokens:           snap.Tokens,
			totalRequests:    snap.TotalRequests,
			rejectedRequests: snap.RejectedRequests,
			lastRefill:       snap.LastRefill,
		},
	}, nil
}

func (s *memoryStore) Peek(ctx context.Context, key string, capacity, rate float64) (*bucketState, error) {
	bucket := s.getOrCreate(key, capacity, rate)
	snap := bucket.Snapshot()
	return &bucketState{
		tokens:           snap.Tokens,
		totalRequests:    snap.TotalRequests,
		rejectedRequests: snap.RejectedRequests,
		lastRefill:       snap.LastRefill,
	}, nil
}

func (s *memoryStore) Reset(ctx context.Context, key string) error {
	if bucket, ok := s.buckets.Get(key); ok {
		bucket.Reset()
	}
	return nil
}

func (s *memoryStore) RemoveByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.buckets.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.buckets.Remove(key)
		}
	}
	return nil
}

func (s *memoryStore) Cleanup(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for _, key := range s.buckets.Keys() {
		if bucket, ok := s.buckets.Peek(key); ok {
			if bucket.idleSince().Before(cutoff) {
				s.buckets.Remove(key)
				removed++
			}
		}
	}
	return removed
}

func (s *memoryStore) Len() int { return s.buckets.Len() }
