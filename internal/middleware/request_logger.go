package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftops/fleet/internal/monitoring"
	"github.com/craftops/fleet/pkg/logger"
)

// RequestLogger logs every HTTP request and feeds the API metrics
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		// Use the route template so metric cardinality stays bounded.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		monitoring.APIRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		monitoring.APIRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(latency.Seconds())

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"ip":         c.ClientIP(),
		}

		if status >= 500 {
			logger.Error("HTTP request", nil, fields)
		} else if status >= 400 {
			logger.Warn("HTTP request", fields)
		} else {
			logger.Info("HTTP request", fields)
		}
	}
}
