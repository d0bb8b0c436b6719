package db

import (
	"digipiggy/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
