package middleware

import (
	"context"
	"net/http"

	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/service"
)

type contextKey string

// WithUser reads the session cookie, stores the token in the request context
// and adds the session's user when one is bound.
// This middleware is optional - it adds the user if present but doesn't require authentication
func WithUser(userService service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.SessionToken(r)
			if token == "" {
				// No session cookie, continue without user
				next.ServeHTTP(w, r)
				return
			}

			ctx := domain.NewContextWithSessionToken(r.Context(), token)

			// Anonymous or expired sessions keep the token for the cart
			user, err := userService.GetUserBySessionToken(ctx, token)
			if err == nil && user != nil {
				ctx = domain.NewContextWithUser(ctx, user)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without an authenticated user with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			respondUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext retrieves the user from the request context
// Returns nil if no user is authenticated
func GetUserFromContext(ctx context.Context) *domain.User {
	return domain.UserFromContext(ctx)
}
