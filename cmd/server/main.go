package main

import (
	"context"   // Redis ping and shutdown deadline
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"digipiggy/internal/api"        // Custom package for API handlers
	"digipiggy/internal/config"     // Custom package for configuration
	"digipiggy/internal/db"         // Database connection
	"digipiggy/internal/jobs"       // Scheduled ledger sweep
	"digipiggy/internal/middleware" // Custom package for middleware
	"digipiggy/internal/repository" // MySQL stores
	"digipiggy/internal/service"    // Business logic
	"digipiggy/internal/utils"      // JWT and cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	setupLogger(cfg) // Setup logger

	// Connect to the database
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		logrus.Fatalf("failed to get DB handle: %v", err)
	}
	defer sqlDB.Close()

	// Setup Redis client, optional
	var cache *utils.Cache
	if cfg.CacheEnabled() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		cache = utils.NewCache(redisClient, cfg.CacheTTL)
	} else {
		logrus.Info("REDIS_ADDR not set, caching disabled")
	}

	users := repository.NewUserRepository(gdb)
	wallets := repository.NewWalletRepository(gdb)
	ledger := service.NewLedger(wallets, cache)
	identity, err := service.NewIdentity(users, utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL), cfg.BcryptCost)
	if err != nil {
		logrus.Fatalf("failed to init identity service: %v", err)
	}
	identity = identity.WithCache(cache)

	stop := make(chan struct{})
	limiter := middleware.NewRateLimiter(cfg.AuthRPS, cfg.AuthBurst)
	limiter.StartCleanup(time.Minute, stop)
	depositLimiter := middleware.NewRateLimiter(cfg.DepositRPS, cfg.DepositBurst)
	depositLimiter.StartCleanup(time.Minute, stop)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Deps{
		Identity:       identity,
		Ledger:         ledger,
		Directory:      service.NewDirectory(users, cache),
		AuthLimiter:    limiter,
		DepositLimiter: depositLimiter,
		Ping:           sqlDB.PingContext,
		TrustedProxies: []string{cfg.TrustedCIDR},
	})
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}

	var scheduler *jobs.Scheduler
	if cfg.ReconcileEnabled() {
		scheduler, err = jobs.NewScheduler(cfg.Reconcile, ledger, 10*time.Minute)
		if err != nil {
			logrus.Fatalf("invalid RECONCILE_SCHEDULE: %v", err)
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
	if scheduler != nil {
		scheduler.Stop(ctx)
	}
}

func setupLogger(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
