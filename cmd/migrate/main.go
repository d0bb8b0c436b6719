package main

import (
	"context" // Bootstrap call
	"errors"  // Conflict detection
	"flag"    // Command line flags
	"os"      // Environment fallback

	"digipiggy/internal/config"     // Custom import path (Config)
	"digipiggy/internal/db"         // Custom import path (Database)
	"digipiggy/internal/domain"     // Roles and error kinds
	"digipiggy/internal/repository" // MySQL stores
	"digipiggy/internal/service"    // Identity service
	"digipiggy/internal/utils"      // JWT utilities

	"github.com/sirupsen/logrus" // Logging
)

// Main entry point for migration
func main() {
	adminEmail := flag.String("admin-email", os.Getenv("ADMIN_EMAIL"), "email of an admin account to create after migrating")
	adminPassword := flag.String("admin-password", os.Getenv("ADMIN_PASSWORD"), "password of the admin account")
	adminName := flag.String("admin-name", "Administrator", "display name of the admin account")
	flag.Parse()

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}

	if *adminEmail == "" {
		return // No bootstrap requested
	}
	identity, err := service.NewIdentity(repository.NewUserRepository(gdb), utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), cfg.BcryptCost)
	if err != nil {
		logrus.Fatalf("failed to init identity service: %v", err)
	}
	res, err := identity.Provision(context.Background(), service.RegisterInput{
		FullName: *adminName,
		Email:    *adminEmail,
		Password: *adminPassword,
		Role:     domain.RoleAdmin,
	})
	if errors.Is(err, domain.ErrConflict) {
		logrus.WithField("email", *adminEmail).Info("Admin account already exists")
		return
	}
	if err != nil {
		logrus.Fatalf("admin bootstrap failed: %s", domain.PublicMessage(err))
	}
	logrus.WithField("user_id", res.User.ID).Info("Admin account created")
}
