// Package middleware provides HTTP middleware for dashboard session
// authentication.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"tokentra/internal/auth"
	"tokentra/internal/utils"
)

// ContextKey is the type for request context keys set by middleware.
type ContextKey string

// Context keys for session data.
const (
	SessionClaimsKey ContextKey = "sessionClaims"
)

// SessionMiddleware validates dashboard session tokens and embeds the
// claims into the request context.
func SessionMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "MISSING_AUTH", "Authorization header required")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := auth.ParseSessionToken(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionClaims retrieves the session claims from the request
// context.
func GetSessionClaims(ctx context.Context) (*auth.SessionClaims, bool) {
	claims, ok := ctx.Value(SessionClaimsKey).(*auth.SessionClaims)
	return claims, ok
}
