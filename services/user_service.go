package services

import (
	"errors"
	"fmt"
	"myblog-restful/auth"
	"myblog-restful/models"
	"myblog-restful/repositories"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// The UserService interface defines the methods that user services need to implement
type UserService interface {
	Register(input *RegisterInput) (*models.User, error)
	Login(username, password string) (*models.User, string, error)
	ListUsers(caller *auth.Principal) ([]models.User, error)
	UpdateUserRole(caller *auth.Principal, targetID uint, role string) error
	DeleteUser(caller *auth.Principal, targetID uint) error
	Stats(caller *auth.Principal) (*StatsResponse, error)
}

// --- Structs for Input/Output ---

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatsResponse carries the admin dashboard counters.
type StatsResponse struct {
	TotalUsers   int64 `json:"totalUsers"`
	TotalAuthors int64 `json:"totalAuthors"`
	TotalReaders int64 `json:"totalReaders"`
	TotalAdmins  int64 `json:"totalAdmins"`
}

// The userService structure is the implementation of the UserService interface
type userService struct {
	repo   repositories.UserRepository
	issuer *auth.TokenIssuer
}

var _ UserService = (*userService)(nil)

// dummyHash keeps the failed-login path doing real bcrypt work even when the
// username does not exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("login-timing-padding"), bcrypt.DefaultCost)

// NewUserService creates a new UserService instance
func NewUserService(repo repositories.UserRepository, issuer *auth.TokenIssuer) UserService {
	return &userService{repo: repo, issuer: issuer}
}

// Register creates a new account. Every new user starts as a reader; only an
// admin can promote them afterwards.
func (s *userService) Register(input *RegisterInput) (*models.User, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if len(input.Username) < 3 {
		return nil, fmt.Errorf("%w: username must be at least 3 characters", ErrValidation)
	}
	if len(input.Password) < 4 {
		return nil, fmt.Errorf("%w: password must be at least 4 characters", ErrValidation)
	}

	// Check uniqueness of email and username
	if _, err := s.repo.FindByEmail(input.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error checking existing user: %w", err)
	}

	if _, err := s.repo.FindByUsername(input.Username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error checking existing user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("could not hash password: %w", err)
	}

	user := models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashedPassword),
		Role:     models.RoleReader,
	}

	if err := s.repo.Create(&user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// Login verifies the credentials and issues a fresh session token. The token
// snapshots the user's current role; a later role change takes effect only on
// the next login.
func (s *userService) Login(username, password string) (*models.User, string, error) {
	user, err := s.repo.FindByUsername(username)
	if err != nil {
		// Don't reveal whether the username exists: run the hash
		// comparison against a throwaway hash so timing stays comparable,
		// then return the same error as a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("could not generate token: %w", err)
	}

	return user, token, nil
}

// ListUsers returns every account for the admin dashboard.
func (s *userService) ListUsers(caller *auth.Principal) ([]models.User, error) {
	if !auth.CanManageUsers(caller) {
		return nil, fmt.Errorf("%w: admins only", ErrForbidden)
	}

	users, err := s.repo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("database error retrieving users: %w", err)
	}
	return users, nil
}

// UpdateUserRole changes a user's role. The change does not touch tokens
// already issued: the affected user keeps acting under the old role until
// re-login.
func (s *userService) UpdateUserRole(caller *auth.Principal, targetID uint, role string) error {
	newRole, ok := models.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	target, err := s.repo.FindByID(targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("database error retrieving user: %w", err)
	}

	if !auth.CanUpdateUserRole(caller, target, newRole) {
		return fmt.Errorf("%w: admins only", ErrForbidden)
	}

	if err := s.repo.UpdateRole(target.ID, newRole); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// DeleteUser removes an account. Their posts stay; nothing cascades.
func (s *userService) DeleteUser(caller *auth.Principal, targetID uint) error {
	if !auth.CanManageUsers(caller) {
		return fmt.Errorf("%w: admins only", ErrForbidden)
	}

	user, err := s.repo.FindByID(targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("database error retrieving user: %w", err)
	}

	if err := s.repo.Delete(user); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Stats counts accounts per role for the admin dashboard.
func (s *userService) Stats(caller *auth.Principal) (*StatsResponse, error) {
	if !auth.CanViewStats(caller) {
		return nil, fmt.Errorf("%w: admins only", ErrForbidden)
	}

	total, err := s.repo.Count()
	if err != nil {
		return nil, fmt.Errorf("database error counting users: %w", err)
	}

	stats := &StatsResponse{TotalUsers: total}
	for _, pair := range []struct {
		role models.Role
		dest *int64
	}{
		{models.RoleAuthor, &stats.TotalAuthors},
		{models.RoleReader, &stats.TotalReaders},
		{models.RoleAdmin, &stats.TotalAdmins},
	} {
		count, err := s.repo.CountByRole(pair.role)
		if err != nil {
			return nil, fmt.Errorf("database error counting users: %w", err)
		}
		*pair.dest = count
	}

	return stats, nil
}
