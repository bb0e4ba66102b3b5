package database

import (
	"fmt"
	"log"
	"myblog-restful/config"
	"myblog-restful/models"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB connects, migrates and seeds. Panics on failure: no database, no
// server.
func InitDB() *gorm.DB {
	databaseURL := config.AppConfig.DatabaseURL

	// GORM logger configuration
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		panic(fmt.Errorf("failed to connect database: %w", err))
	}

	if err := db.AutoMigrate(&models.User{}, &models.Post{}); err != nil {
		panic(fmt.Errorf("failed to migrate database: %w", err))
	}

	fmt.Println("Database connection successful and migrations complete.")

	SeedInitialAdmin(db)
	return db
}

// SeedInitialAdmin creates the bootstrap admin account when no admin exists
// yet. Role changes for everyone else go through this account afterwards.
func SeedInitialAdmin(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		log.Printf("Failed to check for existing admin: %v\n", err)
		return
	}
	if count > 0 {
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("adminpassword"), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash initial admin password: %v\n", err)
		return
	}

	admin := models.User{
		Username: "admin",
		Email:    "admin@example.com",
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Printf("Failed to create initial admin user: %v\n", err)
		return
	}
	log.Println("Created initial admin user. Change its password immediately.")
}
