package controllers

import (
	"errors"
	"myblog-restful/auth"
	"myblog-restful/models"
	"myblog-restful/services"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
)

// UserController exposes registration, sessions and the admin user routes.
type UserController struct {
	userService services.UserService
	issuer      *auth.TokenIssuer
}

// NewUserController creates a UserController instance
func NewUserController(userService services.UserService, issuer *auth.TokenIssuer) *UserController {
	return &UserController{userService: userService, issuer: issuer}
}

// SessionResponse is what login and profile return: exactly what the client
// needs to render the header, nothing more.
type SessionResponse struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

// UserResponse defines the response structure of user information
type UserResponse struct {
	ID        uint        `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type UpdateRoleInput struct {
	Role string `json:"role" description:"New role: admin, author or reader"`
}

func mapModelToUserResponse(user *models.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// --- go-restful Route Definitions ---

// RegisterRoutes sets up the auth-related routes for a go-restful WebService.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/auth").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)

	// --- Public routes ---
	ws.Route(ws.POST("/register").To(ctl.registerHandler).
		Doc("Register a new account (role starts as reader)").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Reads(services.RegisterInput{}).
		Returns(http.StatusCreated, "Account created", SessionResponse{}).
		Returns(http.StatusBadRequest, "Invalid request body", nil).
		Returns(http.StatusConflict, "Username or email already registered", nil))

	ws.Route(ws.POST("/login").To(ctl.loginHandler).
		Doc("Log in and receive the session cookie").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Reads(LoginInput{}).
		Returns(http.StatusOK, "Logged in", SessionResponse{}).
		Returns(http.StatusUnauthorized, "Wrong credentials", nil))

	ws.Route(ws.GET("/profile").To(ctl.profileHandler).
		Doc("Return the session the cookie proves, or null when anonymous").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Returns(http.StatusOK, "Session or null", SessionResponse{}).
		Returns(http.StatusForbidden, "Invalid token", nil))

	ws.Route(ws.POST("/logout").To(ctl.logoutHandler).
		Doc("Clear the session cookie; safe to call repeatedly").
		Metadata(restfulspec.KeyOpenAPITags, []string{"auth"}).
		Returns(http.StatusOK, "Logged out", nil))

	// --- Admin routes ---
	ws.Route(ws.GET("/users").Filter(ctl.issuer.RequireAuth()).To(ctl.listUsersHandler).
		Doc("List all accounts").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Writes([]UserResponse{}).
		Returns(http.StatusOK, "Users listed", []UserResponse{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil))

	ws.Route(ws.PUT("/user/{user-id}").Filter(ctl.issuer.RequireAuth()).To(ctl.updateRoleHandler).
		Doc("Change a user's role (takes effect on their next login)").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Reads(UpdateRoleInput{}).
		Returns(http.StatusOK, "Role updated", nil).
		Returns(http.StatusBadRequest, "Unknown role", nil).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil).
		Returns(http.StatusNotFound, "User not found", nil))

	ws.Route(ws.DELETE("/user/{user-id}").Filter(ctl.issuer.RequireAuth()).To(ctl.deleteUserHandler).
		Doc("Delete an account (their posts remain)").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("integer")).
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Returns(http.StatusOK, "User deleted", nil).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil).
		Returns(http.StatusNotFound, "User not found", nil))

	ws.Route(ws.GET("/stats").Filter(ctl.issuer.RequireAuth()).To(ctl.statsHandler).
		Doc("Account counters for the admin dashboard").
		Metadata(restfulspec.KeyOpenAPITags, []string{"admin"}).
		Writes(services.StatsResponse{}).
		Returns(http.StatusOK, "Stats", services.StatsResponse{}).
		Returns(http.StatusUnauthorized, "Not logged in", nil).
		Returns(http.StatusForbidden, "Admins only", nil))
}

// LoginInput defines the structure of the login request
type LoginInput struct {
	Username string `json:"username" description:"Username for login"`
	Password string `json:"password" description:"Password for login"`
}

// --- go-restful Handler Functions ---

func (ctl *UserController) registerHandler(request *restful.Request, response *restful.Response) {
	input := new(services.RegisterInput)
	if err := request.ReadEntity(input); err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid request body: " + err.Error()}, restful.MIME_JSON)
		return
	}

	user, err := ctl.userService.Register(input)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusCreated, SessionResponse{ID: user.ID, Username: user.Username, Role: user.Role}, restful.MIME_JSON)
}

func (ctl *UserController) loginHandler(request *restful.Request, response *restful.Response) {
	input := new(LoginInput)
	if err := request.ReadEntity(input); err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid request body: " + err.Error()}, restful.MIME_JSON)
		return
	}

	user, token, err := ctl.userService.Login(input.Username, input.Password)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	auth.SetSessionCookie(response, token)
	_ = response.WriteHeaderAndJson(http.StatusOK, SessionResponse{ID: user.ID, Username: user.Username, Role: user.Role}, restful.MIME_JSON)
}

// profileHandler echoes the claims from the cookie without touching the
// database. No cookie is not an error here: the client polls this on every
// page load to decide whether to render as logged in.
func (ctl *UserController) profileHandler(request *restful.Request, response *restful.Response) {
	principal, err := ctl.issuer.PrincipalFromRequest(request.Request)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			_ = response.WriteHeaderAndJson(http.StatusOK, nil, restful.MIME_JSON)
			return
		}
		_ = response.WriteHeaderAndJson(http.StatusForbidden, map[string]string{"message": "Invalid token"}, restful.MIME_JSON)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, SessionResponse{ID: principal.ID, Username: principal.Username, Role: principal.Role}, restful.MIME_JSON)
}

func (ctl *UserController) logoutHandler(request *restful.Request, response *restful.Response) {
	auth.ClearSessionCookie(response)
	_ = response.WriteHeaderAndJson(http.StatusOK, map[string]string{"message": "ok"}, restful.MIME_JSON)
}

func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	users, err := ctl.userService.ListUsers(principal)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	userResponses := make([]UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = mapModelToUserResponse(&user)
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, userResponses, restful.MIME_JSON)
}

func (ctl *UserController) updateRoleHandler(request *restful.Request, response *restful.Response) {
	targetID, ok := parseIDParam(request, response, "user-id")
	if !ok {
		return
	}
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	input := new(UpdateRoleInput)
	if err := request.ReadEntity(input); err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid request body: " + err.Error()}, restful.MIME_JSON)
		return
	}

	if err := ctl.userService.UpdateUserRole(principal, targetID, input.Role); err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, map[string]string{"message": "Role updated"}, restful.MIME_JSON)
}

func (ctl *UserController) deleteUserHandler(request *restful.Request, response *restful.Response) {
	targetID, ok := parseIDParam(request, response, "user-id")
	if !ok {
		return
	}
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	if err := ctl.userService.DeleteUser(principal, targetID); err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, map[string]string{"message": "User deleted"}, restful.MIME_JSON)
}

func (ctl *UserController) statsHandler(request *restful.Request, response *restful.Response) {
	principal, ok := auth.PrincipalFromAttributes(request)
	if !ok {
		_ = response.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
		return
	}

	stats, err := ctl.userService.Stats(principal)
	if err != nil {
		handleServiceError(response, err)
		return
	}

	_ = response.WriteHeaderAndJson(http.StatusOK, stats, restful.MIME_JSON)
}

// --- Utility Functions ---

// parseIDParam reads a numeric path parameter, writing the 400 itself on
// failure.
func parseIDParam(request *restful.Request, response *restful.Response, name string) (uint, bool) {
	raw := request.PathParameter(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		_ = response.WriteHeaderAndJson(http.StatusBadRequest, map[string]string{"message": "Invalid " + name + " format"}, restful.MIME_JSON)
		return 0, false
	}
	return uint(id), true
}

// handleServiceError translates service errors to HTTP responses. Sentinel
// errors carry their own user-facing message; anything else becomes a generic
// 500 so internals never leak.
func handleServiceError(response *restful.Response, err error) {
	statusCode := http.StatusInternalServerError
	message := "An internal error occurred"

	switch {
	case errors.Is(err, services.ErrNotFound):
		statusCode = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, services.ErrForbidden):
		statusCode = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, services.ErrConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.Is(err, services.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, services.ErrExternalService):
		statusCode = http.StatusBadGateway
		message = err.Error()
	}

	_ = response.WriteHeaderAndJson(statusCode, map[string]string{"message": message}, restful.MIME_JSON)
}
