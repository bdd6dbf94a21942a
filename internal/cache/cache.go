// Package cache holds the read cache in front of session-stored carts.
// The database stays authoritative; a cache failure only costs a database read.
package cache

import (
	"context"
	"errors"

	"github.com/dukerupert/harvest/internal/domain"
)

// CartCache caches carts by session token.
type CartCache interface {
	Get(ctx context.Context, token string) (*domain.Cart, error)

	// Set stores cart unless the cached copy has a newer Version.
	Set(ctx context.Context, token string, cart *domain.Cart) error

	Delete(ctx context.Context, token string) error
}

var ErrCacheMiss = errors.New("cache miss")

// Nop is a CartCache that never stores anything. Used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (Nop) Set(context.Context, string, *domain.Cart) error { return nil }

func (Nop) Delete(context.Context, string) error { return nil }
