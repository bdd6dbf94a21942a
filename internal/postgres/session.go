package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionStore implements domain.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that SessionStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// ListExpiredSessions pages through sessions that expired before the given
// time using the (expires_at, token) keyset.
func (s *SessionStore) ListExpiredSessions(ctx context.Context, before time.Time, after domain.ExpiredSession, limit int) ([]domain.ExpiredSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT token, expires_at
		FROM sessions
		WHERE expires_at < $1
		  AND (expires_at, token) > ($2, $3)
		ORDER BY expires_at, token
		LIMIT $4`, before, after.ExpiresAt, after.Token, limit)
	if err != nil {
		return nil, domain.Internal(err, "session.list_expired", "failed to list expired sessions")
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExpiredSession, error) {
		var es domain.ExpiredSession
		err := row.Scan(&es.Token, &es.ExpiresAt)
		return es, err
	})
	if err != nil {
		return nil, domain.Internal(err, "session.list_expired", "failed to scan expired sessions")
	}
	return sessions, nil
}

// DeleteExpiredSession removes the session if it is still expired. A session
// extended by a request since it was listed is kept.
func (s *SessionStore) DeleteExpiredSession(ctx context.Context, token string, before time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1 AND expires_at < $2`, token, before)
	if err != nil {
		return false, domain.Internal(err, "session.delete_expired", "failed to delete session")
	}
	return tag.RowsAffected() == 1, nil
}
