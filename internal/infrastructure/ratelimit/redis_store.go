package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/devportal/pkg/constants"
)

// tokenBucketScript performs the refill-and-consume step atomically on the
// Redis side. Rates are per second; timestamps are milliseconds.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill', 'total', 'rejected')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now
local total = tonumber(bucket[3]) or 0
local rejected = tonumber(bucket[4]) or 0

local elapsed = now - last_refill
if elapsed < 0 then elapsed = 0 end
tokens = math.min(tokens + elapsed * rate / 1000, capacity)
if tokens > capacity then tokens = capacity end

local allowed = 0
total = total + 1
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    rejected = rejected + 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now, 'total', total, 'rejected', rejected)
local ttl = math.ceil(capacity / rate * 1000) + 60000
redis.call('PEXPIRE', key, ttl)

return {allowed, tostring(tokens), total, rejected, last_refill}
`

// redisStore keeps bucket state in Redis so limits hold across server
// instances. Bucket keys expire one minute after a full refill would
// complete, so idle state ages out without a cleanup loop.
type redisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func newRedisStore(client redis.UniversalClient) *redisStore {
	return &redisStore{
		client:    client,
		keyPrefix: constants.CacheKeyPrefixRateLimit,
	}
}

func (s *redisStore) redisKey(key string) string {
	return s.keyPrefix + ":" + key
}

func (s *redisStore) Take(ctx context.Context, key string, capacity, rate, n float64) (*takeOutcome, error) {
	now := time.Now()
	result, err := s.client.Eval(ctx, tokenBucketScript, []string{s.redisKey(key)},
		capacity, rate, n, now.UnixMilli()).Result()
	if err != nil {
		return nil, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 5 {
		return nil, fmt.Errorf("unexpected token bucket script result: %v", result)
	}

	allowed, _ := values[0].(int64)
	tokens := 0.0
	if tokensStr, ok := values[1].(string); ok {
		tokens, _ = strconv.ParseFloat(tokensStr, 64)
	}
	total, _ := values[2].(int64)
	rejected, _ := values[3].(int64)
	lastRefillMs, _ := values[4].(int64)

	return &takeOutcome{
		allowed: allowed == 1,
		state: bucketState{
			tokens:           tokens,
			totalRequests:    total,
			rejectedRequests: rejected,
			lastRefill:       time.UnixMilli(lastRefillMs),
		},
	}, nil
}

func (s *redisStore) Peek(ctx context.Context, key string, capacity, rate float64) (*bucketState, error) {
	values, err := s.client.HMGet(ctx, s.redisKey(key), "tokens", "last_refill", "total", "rejected").Result()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state := &bucketState{tokens: capacity, lastRefill: now}

	if tokensStr, ok := values[0].(string); ok {
		if t, err := strconv.ParseFloat(tokensStr, 64); err == nil {
			state.tokens = t
		}
	}
	if refillStr, ok := values[1].(string); ok {
		if ms, err := strconv.ParseInt(refillStr, 10, 64); err == nil {
			state.lastRefill = time.UnixMilli(ms)
		}
	}
	if totalStr, ok := values[2].(string); ok {
		state.totalRequests, _ = strconv.ParseInt(totalStr, 10, 64)
	}
	if rejectedStr, ok := values[3].(string); ok {
		state.rejectedRequests, _ = strconv.ParseInt(rejectedStr, 10, 64)
	}

	// Refresh accrual locally; Peek never writes.
	elapsed := now.Sub(state.lastRefill).Seconds()
	if elapsed > 0 {
		state.tokens += elapsed * rate
		if state.tokens > capacity {
			state.tokens = capacity
		}
	}

	return state, nil
}

func (s *redisStore) Reset(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.redisKey(key)).Err()
	if err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *redisStore) RemoveByPrefix(ctx context.Context, prefix string) error {
	pattern := s.redisKey(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Cleanup is a no-op: Redis bucket keys carry their own TTL.
func (s *redisStore) Cleanup(maxIdle time.Duration) int { return 0 }

// Len is not supported cheaply against Redis.
func (s *redisStore) Len() int { return -1 }
