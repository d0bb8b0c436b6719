package db

import (
	"net"  // Host/port joining
	"time" // Pool lifetimes

	"digipiggy/internal/config" // Custom package for configuration

	drv "github.com/go-sql-driver/mysql" // MySQL driver, used for DSN formatting
	"github.com/sirupsen/logrus"         // Logging
	"gorm.io/driver/mysql"               // MySQL driver for GORM
	"gorm.io/gorm"                       // GORM ORM library
	"gorm.io/gorm/logger"                // GORM logger levels
)

// DSN builds the MySQL Data Source Name from configuration
func DSN(cfg *config.Config) string {
	c := drv.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	c.DBName = cfg.DBName
	c.ParseTime = true // Scan DATETIME into time.Time
	c.Loc = time.UTC   // Store timestamps in UTC
	return c.FormatDSN()
}

// GormConfig is shared by the server, the migrator and tests
func GormConfig(isProd bool) *gorm.Config {
	level := logger.Warn
	if isProd {
		level = logger.Error
	}
	return &gorm.Config{
		TranslateError:         true,                          // Map duplicate keys to gorm.ErrDuplicatedKey
		SkipDefaultTransaction: true,                          // Multi-statement writes open their own transaction
		Logger:                 logger.Default.LogMode(level), // Quiet SQL logging
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// Open connects to MySQL and configures the connection pool
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), GormConfig(cfg.IsProd))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpen)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	logrus.WithFields(logrus.Fields{
		"host": cfg.DBHost,
		"db":   cfg.DBName,
	}).Info("Database connection pool established")
	return db, nil
}
