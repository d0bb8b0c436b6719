package domain

import (
	"time" // Timestamps

	"gorm.io/gorm" // Soft delete support
)

// Roles a user can hold
const (
	RoleUser  = "user"  // Regular account holder
	RoleAdmin = "admin" // Operator allowed to manage users
)

// User Model
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`                                    // Primary key
	FullName     string         `gorm:"size:120;not null" json:"full_name"`                      // Display name
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`              // Unique login email
	PasswordHash string         `gorm:"size:255;not null" json:"-"`                              // bcrypt hash, never serialized
	Role         string         `gorm:"size:16;not null;default:user" json:"role"`               // Role: user or admin
	CreatedAt    time.Time      `json:"created_at"`                                              // Registration time
	UpdatedAt    time.Time      `json:"updated_at"`                                              // Last name change
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                          // Soft delete marker
	Wallet       *Wallet        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"` // One-to-one relationship with Wallet
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
