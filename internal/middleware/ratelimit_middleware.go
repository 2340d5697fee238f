package middleware

import (
	"net/http"
	"strconv"

	"cute-chat/internal/redis"
	"cute-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// UploadRateLimitMiddleware limits image uploads per viewer. A nil limiter disables it.
func UploadRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewerID := ViewerID(c)
		if limiter == nil || viewerID == "" {
			c.Next()
			return
		}

		result, err := limiter.AllowUpload(c.Request.Context(), viewerID)
		if err != nil {
			// Fail open while Redis is unavailable.
			_ = c.Error(err)
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("upload rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
