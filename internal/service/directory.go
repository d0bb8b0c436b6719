package service

import (
	"context" // Request-scoped cancellation
	"strings" // Input normalization

	"digipiggy/internal/domain" // Importing domain models
	"digipiggy/internal/utils"  // Claims and cache

	"github.com/sirupsen/logrus" // Logging
)

// AdminUser is the user data returned to admins
type AdminUser struct {
	ID       uint           `json:"id"`        // User ID
	FullName string         `json:"full_name"` // Display name
	Email    string         `json:"email"`     // Login email
	Role     string         `json:"role"`      // User role
	Wallet   *domain.Wallet `json:"wallet"`    // Associated wallet, null before first access
}

// UserPage is one page of users with their wallets, for admins
type UserPage struct {
	Users      []AdminUser `json:"users"`       // List of users
	Page       int         `json:"page"`        // Current page
	PageSize   int         `json:"page_size"`   // Page size
	Total      int64       `json:"total"`       // Total number of users
	TotalPages int         `json:"total_pages"` // Total pages
}

// Directory exposes user CRUD around the identity records
type Directory struct {
	users UserStore
	cache *utils.Cache
}

// NewDirectory creates the directory service. cache may be nil.
func NewDirectory(users UserStore, cache *utils.Cache) *Directory {
	return &Directory{users: users, cache: cache}
}

// List returns every user
func (s *Directory) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		logStoreError("list_users", 0, err)
		return nil, err
	}
	return users, nil
}

// Get returns one user
func (s *Directory) Get(ctx context.Context, id uint) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		logStoreError("get_user", id, err)
		return nil, err
	}
	return user, nil
}

// UpdateName renames a user. Only the user themselves or an admin may do it.
func (s *Directory) UpdateName(ctx context.Context, actor *utils.Claims, id uint, fullName string) (*domain.User, error) {
	if actor == nil {
		return nil, domain.NewAuth("missing token")
	}
	if actor.UserID != id && actor.Role != domain.RoleAdmin {
		return nil, domain.NewAuthz("access denied")
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, domain.NewValidation("full_name is required")
	}
	user, err := s.users.UpdateName(ctx, id, fullName)
	if err != nil {
		logStoreError("update_user", id, err)
		return nil, err
	}
	dropAdminPages(ctx, s.cache)
	return user, nil
}

// Delete soft-deletes a user. Only admins may do it.
func (s *Directory) Delete(ctx context.Context, actor *utils.Claims, id uint) error {
	if err := Authorize(actor, domain.RoleAdmin); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		logStoreError("delete_user", id, err)
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  id,           // Deleted user
		"admin_id": actor.UserID, // Acting admin
	}).Info("User deleted by admin")
	dropAdminPages(ctx, s.cache)
	return nil
}

// ListWithWallets returns one page of users with wallets for admins
func (s *Directory) ListWithWallets(ctx context.Context, page, pageSize int) (*UserPage, error) {
	gen, err := s.cache.Generation(ctx, utils.AdminUsersGenerationKey)
	cached := err == nil // Bypass the cache if the generation is unknown
	cacheKey := utils.AdminUsersKey(gen, page, pageSize)
	var hit UserPage
	if cached {
		if found, err := s.cache.GetCache(ctx, cacheKey, &hit); err == nil && found {
			return &hit, nil
		}
	}
	users, total, err := s.users.ListWithWallets(ctx, page, pageSize)
	if err != nil {
		logStoreError("list_users_with_wallets", 0, err)
		return nil, err
	}
	resp := make([]AdminUser, len(users))
	// Map users to response format
	for i, u := range users {
		resp[i] = AdminUser{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role, Wallet: u.Wallet}
	}
	result := &UserPage{
		Users:      resp,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (int(total) + pageSize - 1) / pageSize,
	}
	if cached {
		_ = s.cache.SetCache(ctx, cacheKey, result)
	}
	return result, nil
}

// dropAdminPages retires the cached admin user pages. Anything that adds a
// user or changes a wallet shown on them calls it.
func dropAdminPages(ctx context.Context, cache *utils.Cache) {
	if err := cache.Invalidate(ctx, utils.AdminUsersGenerationKey, utils.AdminUsersPrefix); err != nil {
		logrus.WithError(err).Warn("Admin user cache invalidation failed")
	}
}
