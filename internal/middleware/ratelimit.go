package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wheelio/wheelio-backend/internal/services"
)

// RateLimit enforces a fixed-window limit per client IP, keyed by scope.
// Counters live in Redis so the limit survives across processes. If Redis is
// unavailable the request is allowed; the limiter guards the payment gateway
// from abuse, it is not a correctness gate.
func RateLimit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := services.AllowRequest(c.Request.Context(), scope, c.ClientIP(), limit, window)
		if err != nil {
			log.Printf("rate limiter unavailable for %s: %v", scope, err)
			c.Next()
			return
		}
		if !allowed {
			c.JSON(429, gin.H{"error": "Too many requests, please try again later"})
			c.Abort()
			return
		}
		c.Next()
	}
}
