package models

import "gorm.io/gorm"

// Post holds the rich-text content as the editor produced it (HTML). Cover is
// the media host URL, empty when the post never had one. AuthorID is set on
// creation and never changes afterwards.
type Post struct {
	gorm.Model
	Title    string `gorm:"not null"`
	Summary  string
	Content  string `gorm:"type:text"`
	Cover    string
	AuthorID uint `gorm:"not null"`
	Author   User `gorm:"foreignKey:AuthorID"`
}
