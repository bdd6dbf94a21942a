package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartRepository stores carts under the "cart" key of the session's data.
//
// Bound to a transaction (via InventoryTx.Carts) it creates the session row
// if needed and locks it on Load.
type CartRepository struct {
	db         dbtx
	lock       bool
	sessionTTL time.Duration
}

// Compile-time check that CartRepository implements domain.CartRepository.
var _ domain.CartRepository = (*CartRepository)(nil)

// NewCartRepository creates an unlocked cart repository for read paths.
func NewCartRepository(pool *pgxpool.Pool, sessionTTL time.Duration) *CartRepository {
	return &CartRepository{
		db:         pool,
		sessionTTL: sessionTTL,
	}
}

// Load returns the session's cart, or an empty cart when there is none.
// Session expiry is ignored; expired carts still hold reserved stock.
func (r *CartRepository) Load(ctx context.Context, token string) (*domain.Cart, error) {
	query := `SELECT data->'cart' FROM sessions WHERE token = $1`

	if r.lock {
		// The row must exist before it can be locked.
		_, err := r.db.Exec(ctx, `
			INSERT INTO sessions (token, data, expires_at)
			VALUES ($1, '{}'::jsonb, $2)
			ON CONFLICT (token) DO NOTHING`,
			token, time.Now().Add(r.sessionTTL))
		if err != nil {
			return nil, r.queryError(err, "cart.load", "failed to create session")
		}
		query += ` FOR UPDATE`
	}

	var data []byte
	err := r.db.QueryRow(ctx, query, token).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewCart(), nil
	}
	if err != nil {
		return nil, r.queryError(err, "cart.load", "failed to load cart")
	}

	return decodeCart(data)
}

// Save writes the cart and pushes the session expiry forward.
func (r *CartRepository) Save(ctx context.Context, token string, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO sessions (token, data, expires_at)
		VALUES ($1, jsonb_build_object('cart', $2::jsonb), $3)
		ON CONFLICT (token) DO UPDATE
		SET data = jsonb_set(sessions.data, '{cart}', $2::jsonb),
		    expires_at = GREATEST(sessions.expires_at, EXCLUDED.expires_at)`,
		token, string(data), time.Now().Add(r.sessionTTL))
	if err != nil {
		return r.queryError(err, "cart.save", "failed to save cart")
	}
	return nil
}

// Delete removes the cart from the session. The session itself is kept.
func (r *CartRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET data = data - 'cart' WHERE token = $1`, token)
	if err != nil {
		return r.queryError(err, "cart.delete", "failed to delete cart")
	}
	return nil
}

func (r *CartRepository) queryError(err error, op, message string) error {
	if isTxConflict(err) {
		return domain.TransactionFailure(err, op)
	}
	return fmt.Errorf("%s: %w", message, err)
}

func decodeCart(data []byte) (*domain.Cart, error) {
	cart := domain.NewCart()
	if len(data) == 0 || string(data) == "null" {
		return cart, nil
	}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = make(map[string]domain.LineItem)
	}
	return cart, nil
}
