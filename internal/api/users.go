package api

import (
	"net/http" // HTTP status codes

	"digipiggy/internal/middleware" // Claims from context
	"digipiggy/internal/service"    // Directory and identity services

	"github.com/gin-gonic/gin" // Gin web framework
)

// CreateUserRequest is the admin provisioning body of POST /api/users
type CreateUserRequest struct {
	FullName string `json:"full_name" binding:"required"` // Full name must be provided
	Email    string `json:"email" binding:"required"`     // Email must be provided
	Password string `json:"password" binding:"required"`  // Password must be provided
	Role     string `json:"role"`                         // user or admin, defaults to user
}

// UpdateUserRequest is the body of PUT /api/users/:id
type UpdateUserRequest struct {
	FullName string `json:"full_name" binding:"required"` // New display name
}

// ListUsersHandler returns every user, newest first
func ListUsersHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := directory.List(c.Request.Context())
		if err != nil {
			respondError(c, err) // Return on error
			return
		}
		c.JSON(http.StatusOK, toUsers(users))
	}
}

// CreateUserHandler provisions an account with an explicit role
func CreateUserHandler(identity *service.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateUserRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		res, err := identity.Provision(c.Request.Context(), service.RegisterInput{
			FullName: req.FullName,
			Email:    req.Email,
			Password: req.Password,
			Role:     req.Role,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toUser(res.User))
	}
}

// MeHandler returns the authenticated user
func MeHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.ClaimsFrom(c) // Set by the JWT middleware
		user, err := directory.Get(c.Request.Context(), claims.UserID)
		if err != nil {
			respondError(c, err) // Account deleted since the token was issued
			return
		}
		c.JSON(http.StatusOK, toUser(user))
	}
}

// GetUserHandler returns one user by id
func GetUserHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			badRequest(c, "invalid user id")
			return
		}
		user, err := directory.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toUser(user))
	}
}

// UpdateUserHandler renames a user; self or admin only
func UpdateUserHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			badRequest(c, "invalid user id")
			return
		}
		var req UpdateUserRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "full_name is required")
			return
		}
		user, err := directory.UpdateName(c.Request.Context(), middleware.ClaimsFrom(c), id, req.FullName)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toUser(user))
	}
}

// DeleteUserHandler soft-deletes a user; admin only
func DeleteUserHandler(directory *service.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			badRequest(c, "invalid user id")
			return
		}
		if err := directory.Delete(c.Request.Context(), middleware.ClaimsFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
	}
}
