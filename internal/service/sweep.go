package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/telemetry"
)

// DefaultSweepBatchSize is the number of expired sessions fetched per query.
const DefaultSweepBatchSize = 100

// SweepResult counts what one sweep did.
type SweepResult struct {
	Scanned int
	Deleted int
	Failed  int
}

// SessionSweeper releases the stock held by expired sessions and deletes them.
type SessionSweeper struct {
	sessions  domain.SessionStore
	carts     CartService
	metrics   *telemetry.CartMetrics
	logger    *slog.Logger
	batchSize int
}

// NewSessionSweeper creates a sweeper. metrics may be nil.
func NewSessionSweeper(sessions domain.SessionStore, carts CartService, metrics *telemetry.CartMetrics, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		sessions:  sessions,
		carts:     carts,
		metrics:   metrics,
		logger:    logger,
		batchSize: DefaultSweepBatchSize,
	}
}

// Sweep clears the cart of every session that expired before now, one
// transaction per cart, then deletes the session. A session whose cart cannot
// be cleared is kept and retried by the next sweep; the walk continues past it.
func (s *SessionSweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var (
		result SweepResult
		cursor domain.ExpiredSession
	)

	for {
		batch, err := s.sessions.ListExpiredSessions(ctx, now, cursor, s.batchSize)
		if err != nil {
			return result, err
		}

		for _, session := range batch {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Scanned++

			if err := s.carts.Clear(ctx, session.Token); err != nil {
				result.Failed++
				s.logger.WarnContext(ctx, "failed to release expired cart",
					"code", domain.ErrorCode(err),
					"expires_at", session.ExpiresAt,
					"error", err,
				)
				continue
			}

			deleted, err := s.sessions.DeleteExpiredSession(ctx, session.Token, now)
			if err != nil {
				return result, err
			}
			if deleted {
				result.Deleted++
				s.metrics.SessionSwept()
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		cursor = batch[len(batch)-1]
	}

	s.logger.InfoContext(ctx, "session sweep finished",
		"scanned", result.Scanned,
		"deleted", result.Deleted,
		"failed", result.Failed,
	)
	return result, nil
}
