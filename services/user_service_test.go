package services

import (
	"myblog-restful/auth"
	"myblog-restful/models"
	"myblog-restful/repositories"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB initializes an in-memory SQLite database for testing. Each
// test gets its own named database so nothing leaks between tests.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	return db
}

func testIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	return issuer
}

func newUserService(t *testing.T) (UserService, repositories.UserRepository, *auth.TokenIssuer) {
	t.Helper()
	db := setupTestDB(t)
	repo := repositories.NewUserRepository(db)
	issuer := testIssuer(t)
	return NewUserService(repo, issuer), repo, issuer
}

func principalFor(user *models.User) *auth.Principal {
	return &auth.Principal{ID: user.ID, Username: user.Username, Role: user.Role}
}

func registerUser(t *testing.T, svc UserService, username, email string) *models.User {
	t.Helper()
	user, err := svc.Register(&RegisterInput{Username: username, Email: email, Password: "secret99"})
	require.NoError(t, err)
	return user
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _, issuer := newUserService(t)

	user := registerUser(t, svc, "alice", "alice@example.com")
	assert.Equal(t, models.RoleReader, user.Role, "new accounts start as readers")
	assert.NotEqual(t, "secret99", user.Password, "raw password must never be stored")

	loggedIn, token, err := svc.Login("alice", "secret99")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	principal, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, models.RoleReader, principal.Role)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newUserService(t)

	cases := []RegisterInput{
		{Username: "", Email: "a@example.com", Password: "secret99"},
		{Username: "alice", Email: "", Password: "secret99"},
		{Username: "alice", Email: "a@example.com", Password: ""},
		{Username: "al", Email: "a@example.com", Password: "secret99"}, // username too short
		{Username: "alice", Email: "a@example.com", Password: "abc"},   // password too short
	}
	for _, input := range cases {
		_, err := svc.Register(&input)
		assert.ErrorIs(t, err, ErrValidation, "input %+v", input)
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _, _ := newUserService(t)
	registerUser(t, svc, "alice", "alice@example.com")

	_, err := svc.Register(&RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "secret99"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(&RegisterInput{Username: "alice", Email: "other@example.com", Password: "secret99"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLogin_NeverLeaksUsernameExistence(t *testing.T) {
	svc, _, _ := newUserService(t)
	registerUser(t, svc, "alice", "alice@example.com")

	_, _, errWrongPassword := svc.Login("alice", "nope")
	_, _, errNoSuchUser := svc.Login("nobody", "nope")

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoSuchUser, ErrInvalidCredentials)
	// Identical failures: a caller cannot tell which half was wrong.
	assert.Equal(t, errWrongPassword.Error(), errNoSuchUser.Error())
}

func TestUpdateUserRole(t *testing.T) {
	svc, repo, _ := newUserService(t)
	adminUser := seedAdmin(t, repo)
	target := registerUser(t, svc, "alice", "alice@example.com")

	t.Run("admin promotes", func(t *testing.T) {
		err := svc.UpdateUserRole(principalFor(adminUser), target.ID, "author")
		require.NoError(t, err)

		updated, err := repo.FindByID(target.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleAuthor, updated.Role)
	})

	t.Run("non-admin denied", func(t *testing.T) {
		err := svc.UpdateUserRole(principalFor(target), adminUser.ID, "reader")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		err := svc.UpdateUserRole(principalFor(adminUser), target.ID, "superuser")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing user", func(t *testing.T) {
		err := svc.UpdateUserRole(principalFor(adminUser), 9999, "author")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRoleChangeDoesNotTouchIssuedTokens(t *testing.T) {
	svc, repo, issuer := newUserService(t)
	adminUser := seedAdmin(t, repo)
	registerUser(t, svc, "xavier", "x@example.com")

	// Xavier logs in as an author...
	require.NoError(t, svc.UpdateUserRole(principalFor(adminUser), mustFind(t, repo, "xavier").ID, "author"))
	_, token, err := svc.Login("xavier", "secret99")
	require.NoError(t, err)

	// ...then gets promoted to admin.
	require.NoError(t, svc.UpdateUserRole(principalFor(adminUser), mustFind(t, repo, "xavier").ID, "admin"))

	// The already-issued token still reports author until re-login.
	stale, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthor, stale.Role)

	_, fresh, err := svc.Login("xavier", "secret99")
	require.NoError(t, err)
	renewed, err := issuer.Verify(fresh)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, renewed.Role)
}

func TestDeleteUser(t *testing.T) {
	svc, repo, _ := newUserService(t)
	adminUser := seedAdmin(t, repo)
	target := registerUser(t, svc, "alice", "alice@example.com")

	require.NoError(t, svc.DeleteUser(principalFor(adminUser), target.ID))

	// Deleting an already-deleted id is a NotFound, not a crash.
	err := svc.DeleteUser(principalFor(adminUser), target.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteUser(principalFor(target), adminUser.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStats(t *testing.T) {
	svc, repo, _ := newUserService(t)
	adminUser := seedAdmin(t, repo)
	registerUser(t, svc, "alice", "alice@example.com")
	registerUser(t, svc, "bob", "bob@example.com")
	require.NoError(t, svc.UpdateUserRole(principalFor(adminUser), mustFind(t, repo, "alice").ID, "author"))

	stats, err := svc.Stats(principalFor(adminUser))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalAdmins)
	assert.Equal(t, int64(1), stats.TotalAuthors)
	assert.Equal(t, int64(1), stats.TotalReaders)

	_, err = svc.Stats(principalFor(mustFind(t, repo, "bob")))
	assert.ErrorIs(t, err, ErrForbidden)
}

// --- helpers ---

func seedAdmin(t *testing.T, repo repositories.UserRepository) *models.User {
	t.Helper()
	admin := &models.User{Username: "root", Email: "root@example.com", Password: "irrelevant", Role: models.RoleAdmin}
	require.NoError(t, repo.Create(admin))
	return admin
}

func mustFind(t *testing.T, repo repositories.UserRepository, username string) *models.User {
	t.Helper()
	user, err := repo.FindByUsername(username)
	require.NoError(t, err)
	return user
}
