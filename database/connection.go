package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects and addresses the relational backend.
type Config struct {
	Driver   string // "postgres" or "sqlite"
	User     string
	Password string
	Name     string
	Host     string
	Port     string

	// InstanceConnectionName switches postgres to the Cloud SQL unix socket.
	InstanceConnectionName string
	SQLitePath             string
	LogLevel               logger.LogLevel
}

// DSN builds the driver-specific connection string.
func (c Config) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	if c.InstanceConnectionName != "" {
		// Production: Connect via Unix socket
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.InstanceConnectionName, c.User, c.Password, c.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// Connect opens the database described by cfg.
func Connect(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
		log.Info().Str("path", cfg.SQLitePath).Msg("connecting to sqlite")
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
		if cfg.InstanceConnectionName != "" {
			log.Info().Str("instance", cfg.InstanceConnectionName).Msg("connecting to Cloud SQL via socket")
		} else {
			log.Info().Str("host", cfg.Host).Str("db", cfg.Name).Msg("connecting to PostgreSQL")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One writer at a time keeps sqlite from returning SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info().Msg("database connected")
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}
