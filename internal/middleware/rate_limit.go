package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imyme/imyme-ai/internal/metrics"
	"github.com/imyme/imyme-ai/internal/ratelimit"
	"github.com/imyme/imyme-ai/pkg/config"
	"github.com/imyme/imyme-ai/pkg/domain"
)

const submissionsScope = "submissions"

// RateLimitSubmissions throttles analysis submissions per client address.
func RateLimitSubmissions(lim ratelimit.Limiter, cfg *config.Config) gin.HandlerFunc {
	return rateLimitByClient(lim, submissionsScope, cfg.RateLimit.Submissions)
}

func rateLimitByClient(lim ratelimit.Limiter, scope string, bcfg config.RateLimitBucketConfig) gin.HandlerFunc {
	bucket := ratelimit.Bucket{RequestsPerMinute: bcfg.RequestsPerMinute, BurstSize: bcfg.BurstSize}
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, c.ClientIP(), bucket)
		if err != nil {
			// fail open: a redis hiccup must not reject submissions
			loggerFrom(c).Warn("rate limit check failed", "scope", scope, "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			if dec.Remaining >= 0 {
				c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
			}
			c.Next()
			return
		}

		retryAfter := int(dec.RetryAfter.Seconds())
		if retryAfter <= 0 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		metrics.RateLimitHitsTotal.WithLabelValues(scope).Inc()
		if scope == submissionsScope {
			metrics.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			domain.Fail(domain.CodeRateLimited, "too many requests, retry in "+strconv.Itoa(retryAfter)+"s"))
	}
}

func loggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
