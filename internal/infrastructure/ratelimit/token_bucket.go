// Package ratelimit implements the rate-limiting engine: token buckets with
// lazy refill, progressive per-identifier rate adjustment, and a manager that
// owns the rule registry and all derived state. Bucket state lives either in
// process memory or in Redis behind the same store boundary.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is the atomic rate-accounting primitive for one identifier
// under one rule. Refill is lazy: tokens accrue on access, there is no
// background ticker. All operations take the bucket mutex so refill and
// consume form one atomic step.
type TokenBucket struct {
	mu               sync.Mutex
	capacity         float64
	tokens           float64
	rate             float64 // tokens per second
	lastRefill       time.Time
	lastAccess       time.Time
	totalRequests    int64
	rejectedRequests int64

	now func() time.Time
}

// NewTokenBucket creates a bucket starting at full capacity.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	tb := &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		rate:     rate,
		now:      time.Now,
	}
	tb.lastRefill = tb.now()
	tb.lastAccess = tb.lastRefill
	return tb
}

// refill accrues tokens for the elapsed time since the last refill, clamped
// to capacity. Must be called with the mutex held.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
	}
	tb.lastRefill = now
	tb.lastAccess = now
}

// Consume attempts to take n tokens. It always counts the request; a denial
// additionally counts a rejection.
func (tb *TokenBucket) Consume(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.totalRequests++

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}

	tb.rejectedRequests++
	return false
}

// Peek refills and returns the current token count without touching the
// consumption counters.
func (tb *TokenBucket) Peek() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// SetRate updates the refill rate. Already-accrued tokens are unaffected;
// the new rate applies from the next refill forward.
func (tb *TokenBucket) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Settle accrual under the old rate before switching.
	tb.refill()
	tb.rate = rate
}

// SetCapacity updates the capacity, clamping current tokens downward. Tokens
// are never raised by a capacity change.
func (tb *TokenBucket) SetCapacity(capacity float64) {
	if capacity <= 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.capacity = capacity
	if tb.tokens > capacity {
		tb.tokens = capacity
	}
}

// Rate returns the current refill rate.
func (tb *TokenBucket) Rate() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.rate
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
	tb.lastAccess = tb.lastRefill
}

// TimeUntilAvailable returns how long until n tokens will be available.
func (tb *TokenBucket) TimeUntilAvailable(n float64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= n {
		return 0
	}
	needed := n - tb.tokens
	return time.Duration(needed / tb.rate * float64(time.Second))
}

// BucketSnapshot is a point-in-time view of a bucket.
type BucketSnapshot struct {
	Capacity         float64
	Tokens           float64
	Rate             float64
	TotalRequests    int64
	RejectedRequests int64
	LastRefill       time.Time
}

// Snapshot refills and returns the current bucket state.
func (tb *TokenBucket) Snapshot() BucketSnapshot {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return BucketSnapshot{
		Capacity:         tb.capacity,
		Tokens:           tb.tokens,
		Rate:             tb.rate,
		TotalRequests:    tb.totalRequests,
		RejectedRequests: tb.rejectedRequests,
		LastRefill:       tb.lastRefill,
	}
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastAccess
}
