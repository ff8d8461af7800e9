package myMiddleware

import (
	"context"
	"net/http"
	"strings"

	"go-social/internal/user"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenValidator decouples 'middleware' from the user service.
type TokenValidator interface {
	ValidateToken(tokenString string) (user.Identity, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

func tokenFrom(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}

// Handle rejects requests without a valid token.
func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFrom(r)
		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		id, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional lets requests through as anonymous when the token is missing or
// invalid. Used by the notification channels.
func (am *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id user.Identity
		if tokenString := tokenFrom(r); tokenString != "" {
			if validated, err := am.validator.ValidateToken(tokenString); err == nil {
				id = validated
			}
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom returns the caller identity; anonymous when none was set.
func IdentityFrom(r *http.Request) user.Identity {
	id, _ := r.Context().Value(IdentityKey).(user.Identity)
	return id
}
