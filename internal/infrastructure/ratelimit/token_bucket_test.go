package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for deterministic refill tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestBucket(capacity, rate float64, clock *fakeClock) *TokenBucket {
	tb := NewTokenBucket(capacity, rate)
	tb.now = clock.Now
	tb.lastRefill = clock.Now()
	tb.lastAccess = tb.lastRefill
	return tb
}

func TestTokenBucketBurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(50, 5, clock)

	for i := 0; i < 50; i++ {
		require.True(t, tb.Consume(1), "request %d within capacity should pass", i)
	}
	assert.False(t, tb.Consume(1), "bucket is empty")

	clock.Advance(time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, tb.Consume(1), "refilled token %d should pass", i)
	}
	assert.False(t, tb.Consume(1), "only rate*elapsed tokens accrue")
}

func TestTokenBucketRefillClampsToCapacity(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(10, 100, clock)

	require.True(t, tb.Consume(10))
	clock.Advance(time.Hour)

	assert.InDelta(t, 10, tb.Peek(), 1e-9, "tokens never exceed capacity")
}

func TestTokenBucketCounters(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(2, 1, clock)

	tb.Consume(1)
	tb.Consume(1)
	tb.Consume(1) // denied

	snap := tb.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.RejectedRequests)
}

func TestTokenBucketSetRateSettlesOldAccrual(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(100, 10, clock)
	require.True(t, tb.Consume(100))

	// 2s at the old rate accrue before the switch.
	clock.Advance(2 * time.Second)
	tb.SetRate(1)

	clock.Advance(time.Second)
	assert.InDelta(t, 21, tb.Peek(), 1e-9, "20 at old rate + 1 at new rate")
}

func TestTokenBucketSetCapacityClampsDownOnly(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(100, 1, clock)

	tb.SetCapacity(10)
	assert.InDelta(t, 10, tb.Peek(), 1e-9, "tokens clamp down to the new capacity")

	tb.SetCapacity(100)
	assert.InDelta(t, 10, tb.Peek(), 1e-9, "raising capacity never grants tokens")
}

func TestTokenBucketTimeUntilAvailable(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(10, 2, clock)
	require.True(t, tb.Consume(10))

	assert.Equal(t, 5*time.Second, tb.TimeUntilAvailable(10))
	assert.Equal(t, time.Duration(0), tb.TimeUntilAvailable(0))
}

func TestTokenBucketReset(t *testing.T) {
	clock := newFakeClock()
	tb := newTestBucket(5, 1, clock)
	require.True(t, tb.Consume(5))
	require.False(t, tb.Consume(1))

	tb.Reset()
	assert.True(t, tb.Consume(5))
}

func TestTokenBucketConcurrentConsume(t *testing.T) {
	tb := NewTokenBucket(1000, 0.001)

	var wg sync.WaitGroup
	allowed := make([]bool, 1000)
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			allowed[i] = tb.Consume(1)
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1000, count, "exactly capacity requests pass under contention")
	assert.False(t, tb.Consume(1))
}
