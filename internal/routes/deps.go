package routes

import (
	"github.com/dukerupert/harvest/internal/handler/storefront"
	"github.com/dukerupert/harvest/internal/router"
)

// StorefrontDeps contains dependencies for storefront routes
type StorefrontDeps struct {
	// Catalog (product list, product detail, categories)
	CatalogHandler *storefront.CatalogHandler

	// Cart
	CartHandler *storefront.CartHandler

	// Auth (register, login, logout, account)
	AuthHandler *storefront.AuthHandler

	// AuthRateLimit guards login and register. Nil disables it.
	AuthRateLimit router.Middleware
}
