package service

import (
	"github.com/dukerupert/harvest/internal/domain"
)

// Cart errors - aliases of the domain values so handlers can match either.
var (
	ErrInvalidQuantity      = domain.ErrInvalidQuantity
	ErrProductIDRequired    = domain.ErrProductIDRequired
	ErrSessionTokenRequired = domain.ErrSessionTokenRequired
)

// Catalog errors - use domain.ENOTFOUND
var (
	ErrProductNotFound  = domain.ErrProductNotFound
	ErrCategoryNotFound = domain.ErrCategoryNotFound
)

// User/session errors
var (
	ErrUserNotFound       = domain.ErrUserNotFound
	ErrEmailTaken         = domain.ErrEmailTaken
	ErrInvalidCredentials = domain.ErrInvalidCredentials
	ErrSessionNotFound    = domain.ErrSessionNotFound
	ErrEmailRequired      = domain.Errorf(domain.EINVALID, "", "Email is required")
)
