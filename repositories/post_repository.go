package repositories

import (
	"myblog-restful/models"

	"gorm.io/gorm"
)

// PostRepository interface defines Post-related database operations
type PostRepository interface {
	Create(post *models.Post) error
	FindByID(id uint) (*models.Post, error)
	FindRecent(limit int) ([]models.Post, error)
	Update(post *models.Post) error
	Delete(post *models.Post) error
	AllCovers() ([]string, error)
}

// postRepository implements the PostRepository interface
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create creates a new Post
func (r *postRepository) Create(post *models.Post) error {
	result := r.db.Create(post)
	return result.Error
}

// FindByID finds a Post by ID with its author loaded for the username.
func (r *postRepository) FindByID(id uint) (*models.Post, error) {
	var post models.Post
	result := r.db.Preload("Author").First(&post, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &post, nil
}

// FindRecent returns the newest posts first, author loaded, capped at limit.
func (r *postRepository) FindRecent(limit int) ([]models.Post, error) {
	var posts []models.Post
	result := r.db.Preload("Author").Order("created_at DESC").Limit(limit).Find(&posts)
	if result.Error != nil {
		return nil, result.Error
	}
	return posts, nil
}

// Update updates Post information
func (r *postRepository) Update(post *models.Post) error {
	result := r.db.Save(post)
	return result.Error
}

// Delete deletes Post
func (r *postRepository) Delete(post *models.Post) error {
	result := r.db.Delete(post)
	return result.Error
}

// AllCovers returns the cover column across every post, for the media
// reconciliation sweep. Empty covers are skipped.
func (r *postRepository) AllCovers() ([]string, error) {
	var covers []string
	result := r.db.Model(&models.Post{}).Where("cover <> ''").Pluck("cover", &covers)
	if result.Error != nil {
		return nil, result.Error
	}
	return covers, nil
}
