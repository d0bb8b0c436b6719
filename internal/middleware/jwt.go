package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"digipiggy/internal/domain" // Error messages
	"digipiggy/internal/utils"  // JWT claims

	"github.com/gin-gonic/gin" // Gin web framework
)

// Context keys set by JWTAuthMiddleware
const (
	ClaimsKey = "claims"
	UserIDKey = "userID"
)

// TokenVerifier turns a bearer token into claims
type TokenVerifier interface {
	VerifyToken(token string) (*utils.Claims, error)
}

// JWTAuthMiddleware validates JWT tokens and extracts user information
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")) // Extract the token string
		claims, err := verifier.VerifyToken(tokenStr)                            // Verify signature and expiry
		if err != nil {
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.PublicMessage(err)})
			return
		}
		c.Set(ClaimsKey, claims)        // Store claims in context
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Next()                        // Proceed to the next handler
	}
}

// ClaimsFrom returns the claims stored by JWTAuthMiddleware, or nil
func ClaimsFrom(c *gin.Context) *utils.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
