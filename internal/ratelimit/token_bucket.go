package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

type Bucket struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

func (b Bucket) Enabled() bool {
	return b.RequestsPerMinute > 0 && b.BurstSize > 0
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error)
}

// TokenBucketLimiter keeps one bucket per (scope, subject) in a redis hash so
// every replica behind the load balancer shares the same budget.
type TokenBucketLimiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewTokenBucketLimiter(rdb *redis.Client, prefix string) *TokenBucketLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "imyme"
	}
	return &TokenBucketLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

// KEYS[1] bucket hash; ARGV rate (tokens/sec), capacity, now (ms), ttl (ms).
// Returns {allowed, retry_after_s, remaining}.
var takeToken = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now
if now < ts then ts = now end

tokens = math.min(capacity, tokens + (now - ts) * (rate / 1000.0))

local allowed = 0
local retry_after_s = 0
if tokens >= 1.0 then
  allowed = 1
  tokens = tokens - 1.0
elseif rate > 0 then
  retry_after_s = math.max(1, math.ceil((1.0 - tokens) / rate))
else
  retry_after_s = 60
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, ttl_ms)
return {allowed, retry_after_s, math.floor(tokens)}
`)

func (l *TokenBucketLimiter) Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error) {
	if l == nil || l.rdb == nil || !bucket.Enabled() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}
	key := l.key(scope, subject)
	rate := float64(bucket.RequestsPerMinute) / 60.0
	capacity := float64(bucket.BurstSize)

	res, err := takeToken.Run(ctx, l.rdb, []string{key}, rate, capacity, l.now().UTC().UnixMilli(), bucketTTL(rate, capacity).Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket %s: %w", scope, err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket response: %T", res)
	}

	allowed, _ := vals[0].(int64)
	retryAfter, _ := vals[1].(int64)
	remaining, _ := vals[2].(int64)
	if allowed == 1 {
		return Decision{Allowed: true, Remaining: int(remaining)}, nil
	}
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: time.Duration(retryAfter) * time.Second}, nil
}

// key hashes the subject so client addresses never appear in redis keys.
func (l *TokenBucketLimiter) key(scope, subject string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "default"
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "unknown"
	}
	sum := sha256.Sum256([]byte(subject))
	return fmt.Sprintf("%s:rl:%s:%s", l.prefix, scope, hex.EncodeToString(sum[:]))
}

// bucketTTL keeps idle state for about two empty-to-full refills, within [30s, 1h].
func bucketTTL(rate, capacity float64) time.Duration {
	const (
		minTTL = 30 * time.Second
		maxTTL = time.Hour
	)
	if rate <= 0 || capacity <= 0 {
		return 2 * time.Minute
	}
	ttl := time.Duration(math.Ceil(capacity/rate*2))*time.Second + 5*time.Second
	switch {
	case ttl < minTTL:
		return minTTL
	case ttl > maxTTL:
		return maxTTL
	}
	return ttl
}
