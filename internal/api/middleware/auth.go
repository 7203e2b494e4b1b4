package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/airalabs/interview-core/internal/auth"
)

type contextKey string

const (
	// UserEmailKey is the context key for the authenticated candidate email.
	UserEmailKey contextKey = "user_email"
	// UserIDKey is the context key for the authenticated subject.
	UserIDKey contextKey = "user_id"
)

// RequireAuth returns middleware that rejects requests without a valid
// bearer token.
func RequireAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header")
				return
			}

			token := auth.ExtractBearerToken(authHeader)
			if token == "" {
				writeAuthError(w, "invalid authorization header")
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth returns middleware that attaches caller identity when a
// valid bearer token is present but lets anonymous requests through.
// A malformed or expired token is treated as anonymous, not rejected.
func OptionalAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			token := auth.ExtractBearerToken(authHeader)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.ValidateToken(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserEmail extracts the authenticated candidate email from the
// request context. Returns empty string for anonymous requests.
func GetUserEmail(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

// GetUserID extracts the authenticated subject from the request context.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
