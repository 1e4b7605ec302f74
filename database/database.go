// Package database opens the gorm connection and migrates the schema.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/studieren/recipe_back/config"
	"github.com/studieren/recipe_back/logging"
	"github.com/studieren/recipe_back/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with the configured driver and runs AutoMigrate for every model.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(cfg.SlowQuery),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if isMemorySQLite(cfg) {
		// in-memory connections lock each other's tables
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Info().Str("driver", cfg.Driver).Msg("database ready")
	return db, nil
}

func isMemorySQLite(cfg config.DatabaseConfig) bool {
	return cfg.Driver == "sqlite" &&
		(cfg.DSN == ":memory:" || strings.Contains(cfg.DSN, "mode=memory"))
}

// gormWriter forwards gorm's printf-style output to zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logging.Warn().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// NewGormLogger logs slow queries and errors only. A zero threshold disables slow query logging.
func NewGormLogger(slow time.Duration) logger.Interface {
	return logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
