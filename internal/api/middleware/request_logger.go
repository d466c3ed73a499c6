package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/argus/internal/cerberus"
)

// RequestLogger logs basic request information along with the request_id.
// Server errors log at error level and client errors at warn.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		client := c.GetString(cerberus.ClientIPKey)
		if client == "" {
			client = c.ClientIP()
		}
		status := c.Writer.Status()
		entry := GetRequestLogger(c).WithFields(map[string]interface{}{
			"status":  status,
			"method":  c.Request.Method,
			"path":    SanitizePath(c.Request.URL.Path),
			"latency": latency.String(),
			"client":  client,
		})
		switch {
		case status >= 500:
			entry.Error("handled request")
		case status >= 400:
			entry.Warn("handled request")
		default:
			entry.Info("handled request")
		}
	}
}
