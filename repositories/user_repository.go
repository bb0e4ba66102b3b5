package repositories

import (
	"myblog-restful/models"

	"gorm.io/gorm"
)

// UserRepository interface defines User-related database operations
type UserRepository interface {
	Create(user *models.User) error
	FindByID(id uint) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	UpdateRole(id uint, role models.Role) error
	Delete(user *models.User) error
	FindAll() ([]models.User, error)
	CountByRole(role models.Role) (int64, error)
	Count() (int64, error)
}

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new User
func (r *userRepository) Create(user *models.User) error {
	result := r.db.Create(user)
	return result.Error
}

// FindByID finds User by ID
func (r *userRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// FindByUsername finds User by Username
func (r *userRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	result := r.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail finds User by Email
func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	result := r.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// UpdateRole changes only the role column, leaving credentials untouched.
func (r *userRepository) UpdateRole(id uint, role models.Role) error {
	result := r.db.Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete deletes User
func (r *userRepository) Delete(user *models.User) error {
	result := r.db.Delete(user)
	return result.Error
}

// FindAll returns every user, newest first.
func (r *userRepository) FindAll() ([]models.User, error) {
	var users []models.User
	result := r.db.Order("created_at DESC").Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// CountByRole counts users holding the given role.
func (r *userRepository) CountByRole(role models.Role) (int64, error) {
	var count int64
	result := r.db.Model(&models.User{}).Where("role = ?", role).Count(&count)
	return count, result.Error
}

// Count counts all users.
func (r *userRepository) Count() (int64, error) {
	var count int64
	result := r.db.Model(&models.User{}).Count(&count)
	return count, result.Error
}
