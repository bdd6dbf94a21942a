package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// USER DOMAIN ERRORS
// =============================================================================

var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "User not found"}
	ErrEmailTaken         = &Error{Code: ECONFLICT, Message: "An account with this email already exists"}
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}
	ErrSessionNotFound    = &Error{Code: ENOTFOUND, Message: "Session not found"}
)

// User is a registered customer. Email is the login identifier.
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

// FullName returns first and last name joined, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// CreateUserParams holds the fields persisted for a new user.
type CreateUserParams struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
}

// UserStore persists users and their session bindings.
type UserStore interface {
	// CreateUser returns ErrEmailTaken when the email is already registered.
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)

	// GetUserByEmail returns ErrUserNotFound when absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserBySessionToken returns the user bound to an unexpired session.
	// Returns ErrSessionNotFound when the session is missing, expired or anonymous.
	GetUserBySessionToken(ctx context.Context, token string) (*User, error)

	// RotateSession moves the session stored under oldToken to newToken and
	// binds the user to it. The cart is kept. A missing oldToken session
	// creates a fresh one under newToken.
	RotateSession(ctx context.Context, oldToken, newToken string, userID uuid.UUID, expiresAt time.Time) error

	// DetachUser removes the user binding and keeps the cart.
	DetachUser(ctx context.Context, token string) error
}

// ExpiredSession identifies an expired session and doubles as the keyset
// cursor for ListExpiredSessions.
type ExpiredSession struct {
	Token     string
	ExpiresAt time.Time
}

// SessionStore lists and removes expired sessions.
type SessionStore interface {
	// ListExpiredSessions returns up to limit sessions that expired before
	// the given time, ordered by (ExpiresAt, Token) and strictly after the
	// cursor. A zero cursor starts from the oldest.
	ListExpiredSessions(ctx context.Context, before time.Time, after ExpiredSession, limit int) ([]ExpiredSession, error)

	// DeleteExpiredSession deletes the session only if it is still expired at delete time.
	// Returns false when the session was revived or already removed.
	DeleteExpiredSession(ctx context.Context, token string, before time.Time) (bool, error)
}
