package routes

import (
	"github.com/dukerupert/harvest/internal/middleware"
	"github.com/dukerupert/harvest/internal/router"
)

// RegisterStorefrontRoutes registers all customer-facing storefront routes.
// Every route answers JSON.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Product browsing
	r.Get("/products", deps.CatalogHandler.List)
	r.Get("/products/{slug}", deps.CatalogHandler.Detail)
	r.Get("/categories", deps.CatalogHandler.Categories)

	// Shopping cart
	r.Get("/cart", deps.CartHandler.View)
	r.Post("/cart/add", deps.CartHandler.Add)
	r.Post("/cart/update", deps.CartHandler.Update)
	r.Post("/cart/remove", deps.CartHandler.Remove)
	r.Post("/cart/clear", deps.CartHandler.Clear)

	// Authentication
	auth := r
	if deps.AuthRateLimit != nil {
		auth = r.Group(deps.AuthRateLimit)
	}
	auth.Post("/register", deps.AuthHandler.Register)
	auth.Post("/login", deps.AuthHandler.Login)
	r.Post("/logout", deps.AuthHandler.Logout)

	// Account routes (require authentication)
	account := r.Group(middleware.RequireAuth)
	account.Get("/account", deps.AuthHandler.Account)
}
