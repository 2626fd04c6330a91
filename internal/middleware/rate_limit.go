package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/riadtaziri/booking-backend/internal/metrics"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/riadtaziri/booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// RateLimit rejects clients that exceed the scope's rule with 429. Limiter
// errors let the request through.
func RateLimit(limiter services.RateLimiter, scope string, m *metrics.Metrics, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := utils.GetRealIP(c)

		decision, err := limiter.Allow(c.Request.Context(), scope, identity)
		if err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"scope": scope,
				"ip":    identity,
			}).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			m.IncRateLimited(scope)
			logger.WithFields(logrus.Fields{
				"scope":       scope,
				"ip":          identity,
				"retry_after": retryAfter,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"message":     "Too many requests. Please try again later.",
				"code":        "RATE_LIMITED",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
