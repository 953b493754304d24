package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"escalation-service/internal/logging"
)

// RequestLoggingMiddleware logs method, path, status, and latency for every
// request.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}
