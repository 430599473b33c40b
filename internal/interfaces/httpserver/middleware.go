package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/searchchat/chat-api/internal/infrastructure/metrics"
)

// metricsRecorder records HTTP request metrics for Prometheus.
func metricsRecorder() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		// Skip health/readiness/metrics endpoints
		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = path
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordRequest(c.Request.Method, endpoint, status, time.Since(started).Seconds())
	}
}
