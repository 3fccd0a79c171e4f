package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/response"
)

const (
	rateLimitMax    = 50
	rateLimitWindow = time.Second
)

// Counter is a fixed-window counter, implemented by the redis client.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit allows rateLimitMax requests per second per client IP.
// Authenticated requests and counter errors pass through.
func RateLimit(counter Counter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%d", ip, time.Now().Unix())
		count, err := counter.Incr(c.Request.Context(), key, rateLimitWindow)
		if err != nil {
			log.Warn("rate limit counter failed", zap.Error(err))
			c.Next()
			return
		}

		if count > rateLimitMax {
			log.Warn("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
