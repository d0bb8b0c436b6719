package middleware

import (
	"time" // Request timing

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Request IDs
	"github.com/sirupsen/logrus" // Logging
)

// RequestIDHeader carries the per-request correlation ID
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an ID and writes one access log line
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader) // Reuse an upstream ID if present
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("requestID", reqID)
		c.Header(RequestIDHeader, reqID)

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"request_id": reqID,                      // Correlation ID
			"method":     c.Request.Method,           // HTTP method
			"path":       c.Request.URL.Path,         // Raw path
			"status":     c.Writer.Status(),          // Response status
			"duration":   time.Since(start).String(), // Latency
			"client_ip":  c.ClientIP(),               // Caller
		}
		if userID, ok := c.Get(UserIDKey); ok {
			fields["user_id"] = userID
		}
		entry := logrus.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
