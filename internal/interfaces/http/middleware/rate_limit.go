package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/internal/infrastructure/monitoring"
	"github.com/turtacn/devportal/pkg/logger"
)

// RateLimit evaluates the global, per-IP, and (when authenticated) per-key
// rules for each request. The first denial in rule order wins; allowed
// requests still carry X-RateLimit-* headers from the tightest dimension
// checked last.
func RateLimit(limiter service.RateLimitService, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := []models.RateLimitCheck{
			{RuleName: "global", Identifier: "all", Tokens: 1},
			{RuleName: "per_ip", Identifier: c.ClientIP(), Tokens: 1},
		}
		if key := APIKeyFromContext(c); key != nil {
			checks = append(checks, models.RateLimitCheck{
				RuleName: "per_api_key", Identifier: key.KeyID, Tokens: 1,
			})
		}

		results := limiter.CheckMany(c.Request.Context(), checks)
		for _, result := range results {
			if metrics != nil {
				metrics.RecordCheck(result.RuleName, result.Allowed)
			}
			if result.Allowed {
				continue
			}

			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("rule", result.RuleName),
				logger.String("identifier", result.Identifier),
				logger.Duration("retry_after", result.RetryAfter))

			setRateLimitHeaders(c, result)
			c.Header("Retry-After", fmt.Sprintf("%d", ceilSeconds(result.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "too many requests",
				"rule":        result.RuleName,
				"retry_after": result.RetryAfter.Seconds(),
			})
			return
		}

		if len(results) > 0 {
			setRateLimitHeaders(c, results[len(results)-1])
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *models.RateLimitResult) {
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%.0f", result.TokensRemaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.Unix()))
	c.Header("X-RateLimit-Rule", result.RuleName)
}

func ceilSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
