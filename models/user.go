package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null" json:"-"` // Don't expose password hash
	Email    string `gorm:"unique;not null"`
	Role     Role   `gorm:"not null;default:reader"`
}
