package api

import (
	"net/http" // HTTP status codes

	"digipiggy/internal/domain" // Error kinds

	"github.com/gin-gonic/gin" // Gin web framework
)

// statusOf maps an application error to its HTTP status
func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindAuthz:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": message}. Causes of store failures are
// logged by the services and never reach the client.
func respondError(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": domain.PublicMessage(err)})
}

// badRequest writes a 400 with a fixed message
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
