package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"teamsched/models"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UserContextKey contextKey = "user"

const TokenCookie = "token"

type Claims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup resolves the user a token was issued for.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Auth struct {
	secret     []byte
	expiration time.Duration
	users      UserLookup
	now        func() time.Time
}

func NewAuth(secret string, expiration time.Duration, users UserLookup) *Auth {
	return &Auth{secret: []byte(secret), expiration: expiration, users: users, now: time.Now}
}

func (a *Auth) Expiration() time.Duration { return a.expiration }

func (a *Auth) GenerateToken(user *models.User) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

func tokenFromRequest(r *http.Request) string {
	// Cookie first, then the Authorization header
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Middleware authenticates the request and stores the user in its context.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			unauthorized(w, "Authentication required")
			return
		}

		claims, err := a.ValidateToken(tokenString)
		if err != nil {
			ClearTokenCookie(w)
			unauthorized(w, "Invalid or expired token")
			return
		}

		user, err := a.users.GetUser(r.Context(), claims.UserID)
		if err != nil {
			ClearTokenCookie(w)
			unauthorized(w, "Unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			unauthorized(w, "Authentication required")
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func SetTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// ActorFromContext returns the authenticated actor, or an error when the
// request never passed through Middleware.
func ActorFromContext(ctx context.Context) (models.Actor, error) {
	user := GetUserFromContext(ctx)
	if user == nil {
		return nil, errors.New("no authenticated user in context")
	}
	return user.Actor(), nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, "unauthorized", msg)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}
