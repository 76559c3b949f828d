package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imyme/imyme-ai/internal/ratelimit"
	"github.com/imyme/imyme-ai/pkg/config"
	"github.com/imyme/imyme-ai/pkg/domain"
)

type mockLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
	subject  string
}

func (m *mockLimiter) Allow(ctx context.Context, scope string, subject string, bucket ratelimit.Bucket) (ratelimit.Decision, error) {
	m.calls++
	m.subject = subject
	return m.decision, m.err
}

func limitedConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{
			Submissions: config.RateLimitBucketConfig{RequestsPerMinute: 60, BurstSize: 5},
		},
	}
}

func runRateLimit(t *testing.T, lim ratelimit.Limiter, cfg *config.Config) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/api/v1/analysis", nil)
	ctx.Request.RemoteAddr = "198.51.100.7:4242"
	RateLimitSubmissions(lim, cfg)(ctx)
	return ctx, rec
}

func TestRateLimitSubmissions_DisabledBucket(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false}}

	ctx, _ := runRateLimit(t, limiter, &config.Config{})

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through for disabled bucket")
	}
	if limiter.calls != 0 {
		t.Fatalf("limiter should not be consulted, got %d calls", limiter.calls)
	}
}

func TestRateLimitSubmissions_NilLimiter(t *testing.T) {
	ctx, _ := runRateLimit(t, nil, limitedConfig())
	if ctx.IsAborted() {
		t.Fatal("expected request to pass through with nil limiter")
	}
}

func TestRateLimitSubmissions_Allowed(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 3}}

	ctx, rec := runRateLimit(t, limiter, limitedConfig())

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through when allowed")
	}
	if limiter.subject != "198.51.100.7" {
		t.Errorf("expected client ip as subject, got %q", limiter.subject)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "3" {
		t.Errorf("expected remaining header 3, got %q", got)
	}
}

func TestRateLimitSubmissions_Denied(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		wantHeader string
	}{
		{"whole seconds", 5 * time.Second, "5"},
		{"rounded up to minimum", 500 * time.Millisecond, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: tt.retryAfter}}

			ctx, rec := runRateLimit(t, limiter, limitedConfig())

			if !ctx.IsAborted() {
				t.Fatal("expected request to be aborted")
			}
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantHeader {
				t.Fatalf("expected Retry-After %s, got %s", tt.wantHeader, got)
			}

			var body domain.Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Success || body.Data != nil {
				t.Fatalf("expected failure envelope, got %+v", body)
			}
			if body.Error == nil || body.Error.Code != domain.CodeRateLimited {
				t.Fatalf("expected RATE_LIMITED, got %+v", body.Error)
			}
		})
	}
}

func TestRateLimitSubmissions_FailsOpen(t *testing.T) {
	limiter := &mockLimiter{err: context.DeadlineExceeded}

	ctx, _ := runRateLimit(t, limiter, limitedConfig())

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through when limiter errors")
	}
}
