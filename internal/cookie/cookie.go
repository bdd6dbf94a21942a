// Package cookie sets and reads the storefront session cookie.
package cookie

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "harvest_session"

// DefaultMaxAge is how long browsers keep the session cookie.
const DefaultMaxAge = 30 * 24 * time.Hour

// Config holds cookie attributes shared by every session cookie.
type Config struct {
	// Domain scopes the cookie. Empty means host-only.
	Domain string

	// Secure requires HTTPS. True in production.
	Secure bool

	// MaxAge is the cookie lifetime. Zero uses DefaultMaxAge.
	MaxAge time.Duration
}

// NewConfig creates a new cookie configuration.
func NewConfig(domain string, secure bool, maxAge time.Duration) *Config {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Config{
		Domain: domain,
		Secure: secure,
		MaxAge: maxAge,
	}
}

// SetSession writes the session cookie: HttpOnly, SameSite=Lax, path "/".
func (c *Config) SetSession(w http.ResponseWriter, token string) {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie. Domain and path must match SetSession.
func (c *Config) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SessionToken returns the session token from the request, or "".
func SessionToken(r *http.Request) string {
	return Get(r, SessionCookieName)
}
