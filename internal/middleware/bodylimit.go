package middleware

import (
	"net/http" // Request body limiting

	"github.com/gin-gonic/gin" // Gin web framework
)

// DefaultBodyLimit caps request bodies on the JSON API
const DefaultBodyLimit int64 = 64 << 10

// BodyLimit stops reading a request body after limit bytes; decoding then
// fails and the handler answers 400.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit) // Cap body size
		}
		c.Next()
	}
}
