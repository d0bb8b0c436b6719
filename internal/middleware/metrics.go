package middleware

import (
	"strconv" // Status labels
	"time"    // Request timing

	"digipiggy/internal/metrics" // Prometheus collectors

	"github.com/gin-gonic/gin" // Gin web framework
)

// Metrics records request counts and latencies per route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := metrics.IncInFlight()
		defer done()

		start := time.Now()
		c.Next()

		path := c.FullPath() // Route template keeps label cardinality bounded
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
