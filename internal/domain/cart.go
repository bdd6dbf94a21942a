package domain

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrInvalidQuantity      = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrProductIDRequired    = &Error{Code: EINVALID, Message: "Product ID is required"}
	ErrSessionTokenRequired = &Error{Code: EINVALID, Message: "Session token is required"}
)

// UnknownProductName is shown for products that are not in the cart.
const UnknownProductName = "Unknown Product"

// LineItem is one product's entry in a cart.
//
// Name, UnitPrice, Unit, Currency and Image are a snapshot taken when the
// product was first added. They are not refreshed when the catalog changes.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Unit      string          `json:"unit_measure"`
	Currency  string          `json:"currency"`
}

// Total returns the snapshot price times the quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// NewLineItem snapshots a product into an empty line item.
func NewLineItem(p *Product) LineItem {
	return LineItem{
		ProductID: p.ID,
		UnitPrice: p.Price,
		Name:      p.Name,
		Image:     p.ImageURL,
		Unit:      p.UnitMeasure,
		Currency:  p.Currency,
	}
}

// Cart maps product ids to line items.
//
// Version is the save time in unix microseconds. Cache writes compare it so a
// slow reader cannot overwrite a newer cart with an older one.
type Cart struct {
	Items   map[string]LineItem `json:"items"`
	Version int64               `json:"version"`
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{Items: make(map[string]LineItem)}
}

// Len returns the number of distinct products.
func (c *Cart) Len() int {
	return len(c.Items)
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Get returns the line item for productID.
func (c *Cart) Get(productID string) (LineItem, bool) {
	item, ok := c.Items[productID]
	return item, ok
}

// Put stores a line item, replacing any existing entry for the product.
func (c *Cart) Put(item LineItem) {
	if c.Items == nil {
		c.Items = make(map[string]LineItem)
	}
	c.Items[item.ProductID] = item
}

// Delete removes a product's line item. Deleting an absent product is a no-op.
func (c *Cart) Delete(productID string) {
	delete(c.Items, productID)
}

// ProductIDs returns the product ids in ascending order.
// Callers that lock products use this order to avoid lock-order deadlocks.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for id := range c.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalPrice sums snapshot price times quantity over all line items.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Total())
	}
	return total
}

// TotalQuantity sums the quantities of all line items.
func (c *Cart) TotalQuantity() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// ItemTotal returns the line total for productID, or zero when absent.
func (c *Cart) ItemTotal(productID string) decimal.Decimal {
	if item, ok := c.Items[productID]; ok {
		return item.Total()
	}
	return decimal.Zero
}

// ProductName returns the snapshot name, or UnknownProductName when absent.
func (c *Cart) ProductName(productID string) string {
	if item, ok := c.Items[productID]; ok {
		return item.Name
	}
	return UnknownProductName
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	out := NewCart()
	out.Version = c.Version
	for id, item := range c.Items {
		out.Items[id] = item
	}
	return out
}

// CartRepository stores carts keyed by session token.
//
// Load returns an empty cart when none is stored. Delete on an absent cart is a no-op.
type CartRepository interface {
	Load(ctx context.Context, token string) (*Cart, error)
	Save(ctx context.Context, token string, cart *Cart) error
	Delete(ctx context.Context, token string) error
}
