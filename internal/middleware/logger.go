package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs each request using zap. socket.io polling requests are logged
// at debug level.
func Logger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if strings.HasPrefix(path, "/socket.io") {
			log.Debug("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
