package repository

import (
	"context" // Request-scoped cancellation
	"errors"  // Error matching

	"digipiggy/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// UserRepository persists users in MySQL
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A duplicate email yields a ConflictError.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.NewConflict("user with this email already exists")
	}
	if err != nil {
		return domain.NewPersistence("failed to create user", err)
	}
	return nil
}

// FindByEmail looks a user up by normalized email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return userResult(&user, err)
}

// FindByID looks a user up by primary key
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	return userResult(&user, err)
}

// List returns all users, newest first
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("id desc").Find(&users).Error; err != nil {
		return nil, domain.NewPersistence("failed to fetch users", err)
	}
	return users, nil
}

// ListWithWallets returns one page of users with their wallets preloaded
func (r *UserRepository) ListWithWallets(ctx context.Context, page, pageSize int) ([]domain.User, int64, error) {
	var total int64 // Total user count
	if err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, domain.NewPersistence("failed to count users", err)
	}
	var users []domain.User // Slice to hold users
	// Preload Wallet relation, apply offset and limit for pagination
	err := r.db.WithContext(ctx).Preload("Wallet").
		Order("id asc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, domain.NewPersistence("failed to fetch users", err)
	}
	return users, total, nil
}

// UpdateName changes a user's full name and returns the updated record
func (r *UserRepository) UpdateName(ctx context.Context, id uint, fullName string) (*domain.User, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("full_name", fullName)
	if res.Error != nil {
		return nil, domain.NewPersistence("failed to update user", res.Error)
	}
	// MySQL reports 0 affected rows for an unchanged value, so existence is decided by the re-read
	return r.FindByID(ctx, id)
}

// Delete soft-deletes a user. Wallet and ledger rows are kept.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		return domain.NewPersistence("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFound("user not found")
	}
	return nil
}

func userResult(user *domain.User, err error) (*domain.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFound("user not found")
	}
	if err != nil {
		return nil, domain.NewPersistence("failed to fetch user", err)
	}
	return user, nil
}
