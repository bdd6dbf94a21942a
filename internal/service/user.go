package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/harvest/internal/auth"
	"github.com/dukerupert/harvest/internal/cache"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/go-playground/validator/v10"
)

// DefaultSessionTTL is how long a session lives after login or a cart write.
const DefaultSessionTTL = 30 * 24 * time.Hour

// RegisterParams holds the fields accepted at registration.
type RegisterParams struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// UserService provides business logic for user operations
type UserService interface {
	// Register creates a new user account
	Register(ctx context.Context, params RegisterParams) (*domain.User, error)

	// Authenticate verifies email/password and returns the user if valid
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// Login moves the session to a freshly minted token and binds the user
	// to it. The session's cart is kept. Returns the token to store in the
	// cookie; the old token is no longer valid.
	Login(ctx context.Context, token string, user *domain.User) (string, error)

	// Logout unbinds the user from the session. The cart stays reserved.
	Logout(ctx context.Context, token string) error

	// GetUserBySessionToken retrieves a user from a session token
	GetUserBySessionToken(ctx context.Context, token string) (*domain.User, error)
}

type userService struct {
	store      domain.UserStore
	carts      cache.CartCache
	sessionTTL time.Duration
	validate   *validator.Validate
	now        func() time.Time
}

// NewUserService creates a new UserService instance. carts is the cart cache
// whose entries follow a session to its new token on login; it may be nil.
func NewUserService(store domain.UserStore, carts cache.CartCache, sessionTTL time.Duration) UserService {
	if carts == nil {
		carts = cache.Nop{}
	}
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &userService{
		store:      store,
		carts:      carts,
		sessionTTL: sessionTTL,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// Register creates a new user account
func (s *userService) Register(ctx context.Context, params RegisterParams) (*domain.User, error) {
	const op = "user.register"

	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, domain.NewValidationError(op, "email", "Enter a valid email address")
	}

	passwordHash, err := auth.HashPassword(params.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, domain.NewValidationError(op, "password", domain.ErrorMessage(err))
		}
		return nil, domain.Internal(err, op, "failed to hash password")
	}

	return s.store.CreateUser(ctx, domain.CreateUserParams{
		Email:        email,
		Username:     strings.TrimSpace(params.Username),
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		PasswordHash: passwordHash,
	})
}

// Authenticate verifies email/password and returns the user if valid.
// Unknown emails and wrong passwords return the same error.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			auth.BurnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, domain.Internal(err, "user.authenticate", "failed to verify password")
	}

	return user, nil
}

func (s *userService) Login(ctx context.Context, token string, user *domain.User) (string, error) {
	const op = "user.login"

	newToken, err := GenerateSessionID()
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate session token")
	}

	if err := s.store.RotateSession(ctx, token, newToken, user.ID, s.now().Add(s.sessionTTL)); err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	if token != "" {
		// The cached cart under the old token must not outlive the rename.
		if err := s.carts.Delete(ctx, token); err != nil {
			slog.WarnContext(ctx, "failed to drop cached cart for rotated session", "error", err)
		}
	}
	return newToken, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DetachUser(ctx, token)
}

func (s *userService) GetUserBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	return s.store.GetUserBySessionToken(ctx, token)
}
