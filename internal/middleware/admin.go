package middleware

import (
	"net/http" // HTTP status codes

	"digipiggy/internal/domain"  // Error kinds
	"digipiggy/internal/service" // Role checks

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
)

// RequireRoles only lets through subjects whose token carries one of roles.
// It must run after JWTAuthMiddleware. The role is read from the verified
// token, so no database lookup happens here.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c) // Get claims from context
		err := service.Authorize(claims, roles...)
		if err == nil {
			c.Next() // Allowed, proceed to the next handler
			return
		}
		status := http.StatusForbidden
		if domain.KindOf(err) == domain.KindAuth {
			status = http.StatusUnauthorized // No token was verified at all
		} else {
			logrus.WithFields(logrus.Fields{
				"user_id": claims.UserID, // Rejected subject
				"role":    claims.Role,   // Role it carried
				"path":    c.FullPath(),  // Route it tried
			}).Warn("Access denied")
		}
		c.AbortWithStatusJSON(status, gin.H{"error": domain.PublicMessage(err)})
	}
}

// AdminOnlyMiddleware restricts a route group to admins
func AdminOnlyMiddleware() gin.HandlerFunc {
	return RequireRoles(domain.RoleAdmin)
}
