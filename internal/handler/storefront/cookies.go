package storefront

import (
	"net/http"

	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/service"
)

// sessionToken returns the token placed in the context by middleware.WithUser,
// falling back to the raw cookie when the middleware is not mounted.
func sessionToken(r *http.Request) string {
	if token := domain.SessionTokenFromContext(r.Context()); token != "" {
		return token
	}
	return cookie.SessionToken(r)
}

// ensureSession returns the request's session token, minting one and setting
// the cookie when the browser has none yet.
func ensureSession(w http.ResponseWriter, r *http.Request, cfg *cookie.Config) (string, error) {
	if token := sessionToken(r); token != "" {
		return token, nil
	}

	token, err := service.GenerateSessionID()
	if err != nil {
		return "", domain.Internal(err, "session.create", "failed to create session")
	}
	cfg.SetSession(w, token)
	return token, nil
}
