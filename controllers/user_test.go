package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"myblog-restful/auth"
	"myblog-restful/models"
	"myblog-restful/repositories"
	"myblog-restful/services"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB initializes an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}))
	return db
}

type authFixture struct {
	container *restful.Container
	db        *gorm.DB
	issuer    *auth.TokenIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := setupTestDB(t)
	issuer, err := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	require.NoError(t, err)

	userService := services.NewUserService(repositories.NewUserRepository(db), issuer)
	controller := NewUserController(userService, issuer)

	container := restful.NewContainer()
	ws := new(restful.WebService)
	controller.RegisterRoutes(ws)
	container.Add(ws)

	return &authFixture{container: container, db: db, issuer: issuer}
}

func (fx *authFixture) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", restful.MIME_JSON)
	req.Header.Set("Accept", restful.MIME_JSON)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	fx.container.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.TokenCookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func (fx *authFixture) seedAdmin(t *testing.T) *http.Cookie {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("adminpassword"), bcrypt.DefaultCost)
	require.NoError(t, err)
	admin := &models.User{Username: "root", Email: "root@example.com", Password: string(hashed), Role: models.RoleAdmin}
	require.NoError(t, fx.db.Create(admin).Error)

	w := fx.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "root", "password": "adminpassword"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return sessionCookie(t, w)
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	fx := newAuthFixture(t)

	w := fx.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret99",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"reader"`)

	w = fx.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "secret99"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly, "session cookie must be hidden from page scripts")

	w = fx.do(t, http.MethodGet, "/auth/profile", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, models.RoleReader, session.Role)
}

func TestLogin_WrongCredentials(t *testing.T) {
	fx := newAuthFixture(t)
	fx.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret99",
	}, nil)

	wrongPassword := fx.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "nope"}, nil)
	noSuchUser := fx.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "nope"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, noSuchUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), noSuchUser.Body.String())
}

func TestProfile_AnonymousGetsNull(t *testing.T) {
	fx := newAuthFixture(t)

	w := fx.do(t, http.MethodGet, "/auth/profile", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", strings.TrimSpace(w.Body.String()))
}

func TestProfile_InvalidTokenIs403(t *testing.T) {
	fx := newAuthFixture(t)

	w := fx.do(t, http.MethodGet, "/auth/profile", nil, &http.Cookie{Name: auth.TokenCookieName, Value: "forged"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogout_Idempotent(t *testing.T) {
	fx := newAuthFixture(t)

	for i := 0; i < 2; i++ {
		w := fx.do(t, http.MethodPost, "/auth/logout", nil, nil)
		require.Equal(t, http.StatusOK, w.Code, "logout attempt %d", i+1)
		cookie := sessionCookie(t, w)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0)
	}
}

func TestAdminRoutes_Authorization(t *testing.T) {
	fx := newAuthFixture(t)
	adminCookie := fx.seedAdmin(t)

	w := fx.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "secret99",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var alice SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alice))

	w = fx.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "secret99"}, nil)
	aliceCookie := sessionCookie(t, w)

	t.Run("users list needs admin", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, fx.do(t, http.MethodGet, "/auth/users", nil, nil).Code)
		assert.Equal(t, http.StatusForbidden, fx.do(t, http.MethodGet, "/auth/users", nil, aliceCookie).Code)

		w := fx.do(t, http.MethodGet, "/auth/users", nil, adminCookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "password", "hashes never leave the server")
	})

	t.Run("role update", func(t *testing.T) {
		path := fmt.Sprintf("/auth/user/%d", alice.ID)
		assert.Equal(t, http.StatusForbidden, fx.do(t, http.MethodPut, path, map[string]string{"role": "author"}, aliceCookie).Code)
		assert.Equal(t, http.StatusBadRequest, fx.do(t, http.MethodPut, path, map[string]string{"role": "emperor"}, adminCookie).Code)
		assert.Equal(t, http.StatusOK, fx.do(t, http.MethodPut, path, map[string]string{"role": "author"}, adminCookie).Code)
		assert.Equal(t, http.StatusNotFound, fx.do(t, http.MethodPut, "/auth/user/9999", map[string]string{"role": "author"}, adminCookie).Code)
	})

	t.Run("stats", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, fx.do(t, http.MethodGet, "/auth/stats", nil, aliceCookie).Code)

		w := fx.do(t, http.MethodGet, "/auth/stats", nil, adminCookie)
		require.Equal(t, http.StatusOK, w.Code)
		var stats services.StatsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, int64(2), stats.TotalUsers)
	})

	t.Run("delete user", func(t *testing.T) {
		path := fmt.Sprintf("/auth/user/%d", alice.ID)
		assert.Equal(t, http.StatusForbidden, fx.do(t, http.MethodDelete, path, nil, aliceCookie).Code)
		assert.Equal(t, http.StatusOK, fx.do(t, http.MethodDelete, path, nil, adminCookie).Code)
		assert.Equal(t, http.StatusNotFound, fx.do(t, http.MethodDelete, path, nil, adminCookie).Code)
	})
}
