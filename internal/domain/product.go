package domain

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT DOMAIN ERRORS
// =============================================================================

var (
	ErrProductNotFound    = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrProductUnavailable = &Error{Code: ENOTFOUND, Message: "Product is not available"}
	ErrCategoryNotFound   = &Error{Code: ENOTFOUND, Message: "Category not found"}
)

// Stock thresholds shown on the product page.
const (
	LowStockThreshold = 5

	StockStatusOut = "Out of stock"
	StockStatusLow = "Low stock"
	StockStatusIn  = "In stock"
)

// Catalog defaults.
const (
	DefaultCurrency    = "USD"
	DefaultUnitMeasure = "kg"
	DefaultPageSize    = 12
	MaxPageSize        = 48

	// MaxPage keeps (page-1)*page_size inside a Postgres int4 OFFSET.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Product sort keys accepted by ListProducts.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price"
	SortPriceDesc = "-price"
	SortNameAsc   = "name"
	SortNameDesc  = "-name"
)

// Product is a catalog entry and the owner of its sellable stock count.
// Stock is decremented directly by cart reservations.
type Product struct {
	ID          string
	CategoryID  string
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Currency    string
	UnitMeasure string
	ImageURL    string
	Stock       int
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockStatus returns the customer-facing stock label.
func (p Product) StockStatus() string {
	switch {
	case p.Stock <= 0:
		return StockStatusOut
	case p.Stock <= LowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Category groups products. Categories nest one level through ParentID.
type Category struct {
	ID       string
	Name     string
	Slug     string
	ParentID string
}

// Review is a customer rating of a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	Reviewer  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// TechSpec is one row of a product's technical specification table.
type TechSpec struct {
	Name     string
	Value    string
	Position int
}

// ProductDetail is everything shown on a product page.
type ProductDetail struct {
	Product       Product
	Category      Category
	Reviews       []Review
	Specs         []TechSpec
	AverageRating float64
	ReviewCount   int
	StockStatus   string
}

// ProductFilter narrows a catalog listing.
type ProductFilter struct {
	Category string // category slug, includes direct children
	Query    string // case-insensitive match on name or description
	Sort     string
	Page     int
	PageSize int
}

// Offset returns the row offset of the filter's page.
func (f ProductFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ProductPage is one page of a catalog listing.
type ProductPage struct {
	Items      []Product
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

// =============================================================================
// INVENTORY
// =============================================================================

// InventoryStore opens units of work over product stock and cart state.
//
// WithTx runs fn inside one database transaction. Every write made through
// the InventoryTx commits together or not at all. Failures of the commit
// itself (deadlock, serialization, lost connection) surface as ETXFAILED.
type InventoryStore interface {
	WithTx(ctx context.Context, fn func(tx InventoryTx) error) error

	// BulkGetProducts reads products without locking. Missing ids are absent from the map.
	BulkGetProducts(ctx context.Context, ids []string) (map[string]Product, error)
}

// InventoryTx is the transactional view handed to WithTx callbacks.
type InventoryTx interface {
	// GetProductForUpdate reads a product and holds an exclusive row lock
	// until the transaction ends. Returns ErrProductNotFound when absent.
	GetProductForUpdate(ctx context.Context, id string) (*Product, error)

	// SaveProduct persists stock and price changes.
	SaveProduct(ctx context.Context, p *Product) error

	// Carts returns a cart repository bound to this transaction.
	// Loading a cart through it locks the session row.
	Carts() CartRepository
}

// =============================================================================
// CATALOG
// =============================================================================

// CatalogStore provides read-only access to the catalog.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]Category, error)

	// ListProducts returns one page of available products and the total match count.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)

	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	GetCategory(ctx context.Context, id string) (*Category, error)

	// ListReviews returns reviews newest first.
	ListReviews(ctx context.Context, productID string) ([]Review, error)

	// ListTechSpecs returns specs ordered by position.
	ListTechSpecs(ctx context.Context, productID string) ([]TechSpec, error)
}
