package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestLimiter(t *testing.T) (*TokenBucketLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTokenBucketLimiter(rdb, "test"), mr
}

func TestTokenBucketLimiter_Disabled(t *testing.T) {
	lim, _ := newTestLimiter(t)

	dec, err := lim.Allow(context.Background(), "submissions", "10.0.0.1", Bucket{})
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !dec.Allowed {
		t.Fatal("expected allowed when bucket disabled")
	}

	var nilLimiter *TokenBucketLimiter
	if dec, _ := nilLimiter.Allow(context.Background(), "s", "x", Bucket{RequestsPerMinute: 1, BurstSize: 1}); !dec.Allowed {
		t.Fatal("expected nil limiter to allow")
	}
}

func TestTokenBucketLimiter_BlocksAfterBurst(t *testing.T) {
	lim, _ := newTestLimiter(t)
	fixed := time.Unix(1_700_000_000, 0)
	lim.now = func() time.Time { return fixed }
	bucket := Bucket{RequestsPerMinute: 60, BurstSize: 2}
	ctx := context.Background()

	for i, wantRemaining := range []int{1, 0} {
		dec, err := lim.Allow(ctx, "submissions", "10.0.0.1", bucket)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !dec.Allowed || dec.Remaining != wantRemaining {
			t.Fatalf("request %d: got %+v, want allowed with %d remaining", i, dec, wantRemaining)
		}
	}

	dec, err := lim.Allow(ctx, "submissions", "10.0.0.1", bucket)
	if err != nil {
		t.Fatalf("allow 3: %v", err)
	}
	if dec.Allowed {
		t.Fatal("expected third request to be limited")
	}
	if dec.RetryAfter != time.Second {
		t.Errorf("expected 1s retry at 1 token/sec, got %v", dec.RetryAfter)
	}

	other, err := lim.Allow(ctx, "submissions", "10.0.0.2", bucket)
	if err != nil || !other.Allowed {
		t.Fatalf("expected independent bucket for other subject, got %+v %v", other, err)
	}
}

func TestTokenBucketLimiter_Refills(t *testing.T) {
	lim, _ := newTestLimiter(t)
	clock := time.Unix(1_700_000_000, 0)
	lim.now = func() time.Time { return clock }
	bucket := Bucket{RequestsPerMinute: 60, BurstSize: 1}
	ctx := context.Background()

	if dec, _ := lim.Allow(ctx, "s", "a", bucket); !dec.Allowed {
		t.Fatal("expected first request allowed")
	}
	if dec, _ := lim.Allow(ctx, "s", "a", bucket); dec.Allowed {
		t.Fatal("expected second request limited")
	}
	clock = clock.Add(1500 * time.Millisecond)
	if dec, _ := lim.Allow(ctx, "s", "a", bucket); !dec.Allowed {
		t.Fatal("expected a token after refill")
	}
}

func TestTokenBucketLimiter_KeysAreHashedAndExpire(t *testing.T) {
	lim, mr := newTestLimiter(t)
	if _, err := lim.Allow(context.Background(), "submissions", "203.0.113.9", Bucket{RequestsPerMinute: 60, BurstSize: 5}); err != nil {
		t.Fatalf("allow: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one bucket key, got %v", keys)
	}
	if !strings.HasPrefix(keys[0], "test:rl:submissions:") || strings.Contains(keys[0], "203.0.113.9") {
		t.Errorf("unexpected key %q", keys[0])
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 {
		t.Errorf("expected bucket key to expire, ttl=%v", ttl)
	}
}

func TestBucketTTL(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		capacity float64
		want     time.Duration
	}{
		{"invalid rate", 0, 10, 2 * time.Minute},
		{"floor", 10, 1, 30 * time.Second},
		{"two refills", 1, 60, 125 * time.Second},
		{"ceiling", 0.001, 1000, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bucketTTL(tt.rate, tt.capacity); got != tt.want {
				t.Errorf("bucketTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}
