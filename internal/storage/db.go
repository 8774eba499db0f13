package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
)

// ErrStorage marks every failure reported by the repositories.
var ErrStorage = errors.New("storage error")

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Open connects to the configured database
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: NewCustomGormLogger(cfg.LogLevel),
	}

	switch cfg.Driver {
	case "mysql":
		return openMySQL(cfg, gormCfg)
	case "sqlite", "":
		return openSQLite(cfg.Path, gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

func openMySQL(cfg config.DatabaseConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
	)

	logger.Infof("Connecting to database: %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)

	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Infof("Database connection established successfully")
	return db, nil
}

func openSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" && !isURI(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Infof("Opening sqlite database: %s", path)

	db, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}
	// a single connection serialises writers and keeps in-memory databases alive
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		logger.Warningf("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" && !isURI(path) {
		if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			logger.Warningf("Failed to enable sqlite WAL: %v", err)
		}
	}

	return db, nil
}

func isURI(path string) bool {
	return len(path) > 5 && path[:5] == "file:"
}

// AllModels lists the persisted relations
func AllModels() []interface{} {
	return []interface{}{
		&models.ScheduledTask{},
		&models.MessageLink{},
		&models.AuditLog{},
	}
}

// Migrate creates or updates the tables for all relations
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}
