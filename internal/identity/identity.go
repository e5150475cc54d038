// Package identity provides username-cookie identity for the API.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/countrychat/internal/store"
)

const (
	// CookieName is the identity cookie. Its value is the username, which
	// doubles as the user ID.
	CookieName = "username"

	cookieMaxAge = time.Hour
)

type contextKey int

const userIDKey contextKey = iota

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// UserIDFromContext extracts the authenticated user ID from the request
// context. Empty when the request carries no resolvable identity.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithUserID returns a context carrying the given user ID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ValidateUsername normalizes and validates a username.
func ValidateUsername(input string) (string, error) {
	username := strings.TrimSpace(input)
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("username contains invalid characters")
	}
	return username, nil
}

// SetCookie sets the identity cookie.
func SetCookie(w http.ResponseWriter, username string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    username,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// ClearCookie removes the identity cookie.
func ClearCookie(w http.ResponseWriter, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware resolves the identity cookie against the user table and, when
// the user exists, stores the user ID in the request context. Requests
// without a resolvable identity pass through unauthenticated; handlers
// decide whether that is an error.
func Middleware(repo store.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil || !usernamePattern.MatchString(cookie.Value) {
				next.ServeHTTP(w, r)
				return
			}

			user, err := repo.GetUser(r.Context(), cookie.Value)
			if err != nil {
				// Favor availability: a store error during identity lookup
				// degrades to unauthenticated rather than failing the request.
				slog.Error("identity lookup failed", "username", cookie.Value, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), user.ID)))
		})
	}
}
