package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

var (
	ErrEmptyKey     = errors.New("rate limiter key is empty")
	ErrInvalidLimit = errors.New("rate limiter rate and burst must be positive")
)

// TokenBucket is a Redis-backed limiter shared by every replica.
type TokenBucket struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
}

func NewTokenBucket(client redis.UniversalClient, prefix string) *TokenBucket {
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		prefix: prefix,
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if !limit.valid() {
		return nil, ErrInvalidLimit
	}

	ttl := bucketTTL(limit)
	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{t.prefix + key},
		limit.Rate,
		limit.Burst,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, errors.New("invalid rate limit script response")
	}

	allowed := toInt(res[0]) == 1
	remaining := toFloat(res[1])

	return newResult(allowed, limit, remaining), nil
}

func newResult(allowed bool, limit Limit, remaining float64) *Result {
	var retryAfter time.Duration
	if !allowed {
		if needed := 1.0 - remaining; needed > 0 {
			retryAfter = time.Duration(needed / limit.Rate * float64(time.Second))
		}
	}
	return &Result{
		Allowed:    allowed,
		Limit:      limit.Burst,
		Remaining:  int(math.Max(0, remaining)),
		RetryAfter: retryAfter,
	}
}

func bucketTTL(limit Limit) time.Duration {
	seconds := math.Ceil((float64(limit.Burst) / limit.Rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
