package config

import (
	"errors" // Validation errors
	"time"   // Token lifetime

	"github.com/joeshaw/envdecode" // Struct decoding from environment variables
	"github.com/joho/godotenv"     // For loading .env files
	"golang.org/x/crypto/bcrypt"   // Cost bounds for password hashing
)

// Config holds the application configuration. It is built once at startup
// and shared read-only by every service.
type Config struct {
	AppPort      string        `env:"APP_PORT,default=4000"`                // Application port
	DBUser       string        `env:"DB_USER,default=root"`                 // Database user
	DBPassword   string        `env:"DB_PASSWORD"`                          // Database password
	DBHost       string        `env:"DB_HOST,default=localhost"`            // Database host
	DBPort       string        `env:"DB_PORT,default=3306"`                 // Database port
	DBName       string        `env:"DB_NAME,default=digipiggy"`            // Database name
	DBMaxOpen    int           `env:"DB_MAX_OPEN_CONNS,default=25"`         // Pool size
	DBMaxIdle    int           `env:"DB_MAX_IDLE_CONNS,default=25"`         // Idle pool size
	JWTSecret    string        `env:"JWT_SECRET"`                           // JWT secret key
	JWTTTL       time.Duration `env:"JWT_TTL,default=168h"`                 // Token lifetime
	BcryptCost   int           `env:"BCRYPT_COST,default=10"`               // Password hash cost
	RedisAddr    string        `env:"REDIS_ADDR"`                           // Redis server address, empty disables caching
	RedisPass    string        `env:"REDIS_PASS"`                           // Redis password
	RedisDB      int           `env:"REDIS_DB,default=0"`                   // Redis database number
	CacheTTL     time.Duration `env:"CACHE_TTL,default=60s"`                // Cache entry lifetime
	AuthRPS      int           `env:"AUTH_RATE_LIMIT_RPS,default=5"`        // Auth requests per second per IP
	AuthBurst    int           `env:"AUTH_RATE_LIMIT_BURST,default=10"`     // Auth burst per IP
	DepositRPS   int           `env:"DEPOSIT_RATE_LIMIT_RPS,default=10"`    // Deposit requests per second per IP
	DepositBurst int           `env:"DEPOSIT_RATE_LIMIT_BURST,default=20"`  // Deposit burst per IP
	Reconcile    string        `env:"RECONCILE_SCHEDULE,default=@every 1h"` // Cron schedule of the ledger sweep, "off" disables it
	LogLevel     string        `env:"LOG_LEVEL,default=info"`               // logrus level
	IsProd       bool          `env:"IS_PROD,default=false"`                // Is production environment
	TrustedCIDR  string        `env:"TRUSTED_PROXY,default=127.0.0.1"`      // Proxy trusted by gin
}

// LoadConfig loads configuration from the environment, reading a .env file
// first if one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.New("BCRYPT_COST out of range")
	}
	if c.AuthRPS <= 0 || c.AuthBurst <= 0 {
		return errors.New("auth rate limit must be positive")
	}
	if c.DepositRPS <= 0 || c.DepositBurst <= 0 {
		return errors.New("deposit rate limit must be positive")
	}
	return nil
}

// ReconcileEnabled reports whether the periodic ledger sweep should run.
func (c *Config) ReconcileEnabled() bool {
	return c.Reconcile != "" && c.Reconcile != "off"
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
