package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure UserStore implements domain.UserStore.
var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore instance.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash, u.created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// =============================================================================
// Users
// =============================================================================

// CreateUser inserts a user. Emails are unique regardless of case.
func (s *UserStore) CreateUser(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users AS u (email, username, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		strings.TrimSpace(params.Email), params.Username, params.FirstName, params.LastName, params.PasswordHash))
	if err != nil {
		if sqlState(err) == pgUniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.Internal(err, "user.create", "failed to create user")
	}
	return u, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE lower(u.email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "user.get_by_email", "failed to get user")
	}
	return u, nil
}

// =============================================================================
// Session bindings
// =============================================================================

// GetUserBySessionToken resolves the user stored in an unexpired session.
func (s *UserStore) GetUserBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	u, err := scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM sessions s
		JOIN users u ON u.id::text = s.data->>'user_id'
		WHERE s.token = $1 AND s.expires_at > now()`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "user.get_by_session", "failed to get session user")
	}
	return u, nil
}

// RotateSession renames the old session row to newToken in one statement so
// a token planted before login never becomes authenticated. The expiry is
// pushed forward to expiresAt.
func (s *UserStore) RotateSession(ctx context.Context, oldToken, newToken string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		WITH moved AS (
			UPDATE sessions
			SET token = $2,
			    data = jsonb_set(data, '{user_id}', to_jsonb($3::text)),
			    expires_at = GREATEST(expires_at, $4)
			WHERE token = $1
			RETURNING token
		)
		INSERT INTO sessions (token, data, expires_at)
		SELECT $2, jsonb_build_object('user_id', $3::text), $4
		WHERE NOT EXISTS (SELECT 1 FROM moved)`,
		oldToken, newToken, userID.String(), expiresAt)
	if err != nil {
		if isTxConflict(err) {
			return domain.TransactionFailure(err, "user.rotate_session")
		}
		return domain.Internal(err, "user.rotate_session", "failed to rotate session")
	}
	return nil
}

// DetachUser removes the user id from the session and keeps the cart.
func (s *UserStore) DetachUser(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET data = data - 'user_id' WHERE token = $1`, token)
	if err != nil {
		return domain.Internal(err, "user.detach", "failed to detach user from session")
	}
	return nil
}
