package auth

import (
	"errors"
	"fmt"
	"myblog-restful/models"
	"net/http"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/golang-jwt/jwt/v4"
)

// TokenCookieName is the HTTP-only cookie the session token travels in.
const TokenCookieName = "token"

var (
	// ErrNoToken means the request carried no session cookie at all. The
	// caller is anonymous, which is different from carrying a bad token.
	ErrNoToken = errors.New("not logged in")
	// ErrInvalidToken means a token was supplied but failed verification
	// (bad signature, expired, malformed).
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the identity a verified token proves. The role is a snapshot
// taken at issuance: an admin changing a user's role does not affect tokens
// already in the wild until the user logs in again.
type Principal struct {
	ID       uint
	Username string
	Role     models.Role
}

// CustomClaims represents the custom claims embedded in the session JWT.
type CustomClaims struct {
	UserID   uint        `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens. The signing secret is an
// explicit dependency rather than package state so tests (and a future
// multi-instance deployment) can construct issuers independently.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer fails when no secret is configured. Treat that as fatal at
// process start, not as a per-request condition.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl}, nil
}

// Issue creates a new signed session token for the given user.
func (ti *TokenIssuer) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "myblog",
			Subject:   "user-auth",
			Audience:  []string{"myblog-users"},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ti.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Verify checks the signature and expiry and returns the embedded principal.
// Every failure mode wraps ErrInvalidToken; "no token at all" never reaches
// this function.
func (ti *TokenIssuer) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	})

	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorMalformed != 0 {
				return nil, fmt.Errorf("%w: malformed token", ErrInvalidToken)
			} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
				return nil, fmt.Errorf("%w: token is either expired or not active yet", ErrInvalidToken)
			} else if ve.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
				return nil, fmt.Errorf("%w: invalid token signature", ErrInvalidToken)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Principal{ID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// PrincipalFromRequest reads the session cookie and verifies it. Returns
// ErrNoToken for an absent cookie and ErrInvalidToken for a present but bad
// one; callers map those to 401 and 403 respectively.
func (ti *TokenIssuer) PrincipalFromRequest(req *http.Request) (*Principal, error) {
	cookie, err := req.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoToken
	}
	return ti.Verify(cookie.Value)
}

// RequireAuth creates a go-restful FilterFunction that rejects requests
// without a valid session and stores the verified principal as a request
// attribute for the handlers downstream.
func (ti *TokenIssuer) RequireAuth() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		principal, err := ti.PrincipalFromRequest(req.Request)
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				_ = resp.WriteHeaderAndJson(http.StatusUnauthorized, map[string]string{"message": "Not logged in"}, restful.MIME_JSON)
			} else {
				_ = resp.WriteHeaderAndJson(http.StatusForbidden, map[string]string{"message": "Invalid token"}, restful.MIME_JSON)
			}
			return
		}

		req.SetAttribute("principal", principal)
		chain.ProcessFilter(req, resp)
	}
}

// PrincipalFromAttributes extracts the principal set by RequireAuth.
func PrincipalFromAttributes(req *restful.Request) (*Principal, bool) {
	attr := req.Attribute("principal")
	if attr == nil {
		return nil, false
	}
	principal, ok := attr.(*Principal)
	return principal, ok
}

// SetSessionCookie writes the token as an HTTP-only cookie scoped to the API
// origin, so page scripts never see it.
func SetSessionCookie(resp *restful.Response, token string) {
	http.SetCookie(resp, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie overwrites the cookie with an expired empty value. There
// is no server-side revocation list: a token issued earlier stays valid until
// its own expiry even after logout.
func ClearSessionCookie(resp *restful.Response) {
	http.SetCookie(resp, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}
