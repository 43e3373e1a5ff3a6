package config

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const slowRequestThreshold = 2 * time.Second

// PerformanceLogger logs every request with its latency.
func PerformanceLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", latency),
		}
		logger.Info("request", attrs...)

		// Sweeps legitimately take seconds; anything slower deserves a look.
		if latency > slowRequestThreshold {
			logger.Warn("slow request", attrs...)
		}
	}
}
