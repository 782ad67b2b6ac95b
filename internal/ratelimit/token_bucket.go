package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// bucketScript refills the bucket from redis server time and takes one
// token. It replies {allowed, tokens, retry_ms}; tokens travel as a string
// because RESP truncates Lua numbers to integers.
var bucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
local elapsed = math.max(0, now - last)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
local retry = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return {allowed, tostring(tokens), retry}
`)

// TokenBucket is a redis backed bucket shared by every replica.
type TokenBucket struct {
	client *redis.Client
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from key, refilled at rate tokens per second up to
// burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Result, error) {
	if t == nil || t.client == nil {
		return Result{}, errors.New("token bucket not configured")
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Result{}, fmt.Errorf("invalid token bucket %q: rate=%v burst=%d", key, rate, burst)
	}

	reply, err := bucketScript.Run(ctx, t.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Slice()
	if err != nil {
		return Result{}, err
	}
	allowed, tokens, retry, err := parseBucketReply(reply)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(tokens),
		RetryAfter: retry,
	}, nil
}

// bucketTTL keeps an idle bucket for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}

func parseBucketReply(reply []any) (bool, float64, time.Duration, error) {
	if len(reply) != 3 {
		return false, 0, 0, fmt.Errorf("token bucket: unexpected reply %v", reply)
	}
	allowed, ok := reply[0].(int64)
	if !ok {
		return false, 0, 0, fmt.Errorf("token bucket: allowed is %T", reply[0])
	}
	raw, ok := reply[1].(string)
	if !ok {
		return false, 0, 0, fmt.Errorf("token bucket: tokens is %T", reply[1])
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false, 0, 0, fmt.Errorf("token bucket: tokens: %w", err)
	}
	retryMS, ok := reply[2].(int64)
	if !ok {
		return false, 0, 0, fmt.Errorf("token bucket: retry is %T", reply[2])
	}
	return allowed == 1, tokens, time.Duration(retryMS) * time.Millisecond, nil
}
