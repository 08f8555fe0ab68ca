package database

import (
	"log"

	"reportgate/config"
	"reportgate/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens MySQL when a DSN is configured, otherwise falls back to a local
// SQLite file for development.
func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}
	if cfg.DSN == "" {
		log.Printf("[DB] DATABASE_DSN not set, using SQLite at %s", cfg.SQLitePath)
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	}
	db, err := gorm.Open(mysql.Open(cfg.DSN), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Report{},
		&models.Purchase{},
		&models.Lead{},
		&models.Admin{},
	)
}

// SeedAdmin creates the initial admin account when none exists. Skipped unless
// ADMIN_PASSWORD is configured, so a bare dev instance has no default login.
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig) {
	if cfg.Password == "" {
		log.Printf("[DB] admin seeding skipped: set ADMIN_PASSWORD to enable")
		return
	}
	var count int64
	if err := db.Model(&models.Admin{}).Count(&count).Error; err != nil || count > 0 {
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[DB] admin seeding failed: %v", err)
		return
	}
	admin := &models.Admin{Email: cfg.Email, PasswordHash: string(hash)}
	if err := db.Create(admin).Error; err != nil {
		log.Printf("[DB] admin seeding failed: %v", err)
		return
	}
	log.Printf("[DB] seeded admin %s", cfg.Email)
}
