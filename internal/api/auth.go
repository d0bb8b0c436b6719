package api

import (
	"net/http" // HTTP status codes

	"digipiggy/internal/service" // Identity service

	"github.com/gin-gonic/gin" // Gin web framework
)

// RegisterRequest is the body of POST /api/auth/register
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"` // Full name must be provided
	Email    string `json:"email" binding:"required"`     // Email must be provided
	Password string `json:"password" binding:"required"`  // Password must be provided
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// RegisterHandler creates a regular account and returns it with a token
func RegisterHandler(identity *service.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			badRequest(c, "invalid request body")
			return
		}
		res, err := identity.Register(c.Request.Context(), service.RegisterInput{
			FullName: req.FullName, // Display name
			Email:    req.Email,    // Login email
			Password: req.Password, // Plain password, hashed by the service
		})
		if err != nil {
			respondError(c, err) // Validation, conflict or store failure
			return
		}
		// Return the new identity with its token
		c.JSON(http.StatusCreated, toAuth(res))
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(identity *service.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			badRequest(c, "email and password are required")
			return
		}
		res, err := identity.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err) // Same message for unknown email and wrong password
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, toAuth(res))
	}
}
