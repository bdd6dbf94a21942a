package storefront

import (
	"fmt"
	"net/http"

	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/handler"
	"github.com/dukerupert/harvest/internal/service"
)

// CartHandler handles all cart-related storefront routes
type CartHandler struct {
	cartService service.CartService
	cookies     *cookie.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService service.CartService, cookies *cookie.Config) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		cookies:     cookies,
	}
}

// cartRequest is the body accepted by add, update and remove.
// A missing quantity means 1.
type cartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (c cartRequest) quantity() int {
	if c.Quantity == nil {
		return 1
	}
	return *c.Quantity
}

func decodeCartRequest(r *http.Request) (cartRequest, error) {
	var req cartRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		return req, err
	}
	if req.ProductID == "" {
		return req, service.ErrProductIDRequired
	}
	return req, nil
}

type cartItemJSON struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	ImageURL    string `json:"image_url,omitempty"`
	UnitMeasure string `json:"unit_measure"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
	Stock       int    `json:"stock"`
}

type cartViewResponse struct {
	Items     []cartItemJSON `json:"items"`
	CartCount int            `json:"cart_count"`
	CartTotal string         `json:"cart_total"`
}

// View handles GET /cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cartService.Summary(r.Context(), sessionToken(r))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := cartViewResponse{
		Items:     make([]cartItemJSON, 0, len(summary.Items)),
		CartCount: summary.TotalQuantity,
		CartTotal: money(summary.TotalPrice),
	}
	for _, item := range summary.Items {
		resp.Items = append(resp.Items, cartItemJSON{
			ProductID:   item.ProductID,
			Name:        item.Product.Name,
			Slug:        item.Product.Slug,
			ImageURL:    item.Product.ImageURL,
			UnitMeasure: item.Product.UnitMeasure,
			Currency:    item.Product.Currency,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			LineTotal:   money(item.LineTotal),
			Stock:       item.Product.Stock,
		})
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}

// Add handles POST /cart/add
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeCartRequest(r)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	token, err := ensureSession(w, r, h.cookies)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	if err := h.cartService.Add(ctx, token, req.ProductID, req.quantity()); err != nil {
		writeCartError(w, r, err)
		return
	}

	name, err := h.cartService.DisplayName(ctx, token, req.ProductID)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	h.writeCartState(w, r, token, "", fmt.Sprintf("%s added to cart", name))
}

// Update handles POST /cart/update. A quantity of zero or less removes the item.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeCartRequest(r)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	token := sessionToken(r)
	quantity := req.quantity()

	// Read the name first so a removal can still report it. Unknown
	// products are rejected here since Update ignores them.
	name, err := h.cartService.DisplayName(ctx, token, req.ProductID)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	if err := h.cartService.Update(ctx, token, req.ProductID, quantity); err != nil {
		writeCartError(w, r, err)
		return
	}

	message := fmt.Sprintf("%s quantity updated to %d", name, quantity)
	if quantity <= 0 {
		message = fmt.Sprintf("%s removed from cart", name)
	}

	h.writeCartState(w, r, token, req.ProductID, message)
}

// Remove handles POST /cart/remove
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeCartRequest(r)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	token := sessionToken(r)

	name, err := h.cartService.DisplayName(ctx, token, req.ProductID)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	if err := h.cartService.Remove(ctx, token, req.ProductID); err != nil {
		writeCartError(w, r, err)
		return
	}

	h.writeCartState(w, r, token, "", fmt.Sprintf("%s removed from cart", name))
}

// Clear handles POST /cart/clear
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)

	if err := h.cartService.Clear(r.Context(), token); err != nil {
		writeCartError(w, r, err)
		return
	}

	h.writeCartState(w, r, token, "", "Cart cleared")
}

// writeCartState writes the success envelope with fresh totals. item_total is
// included only when itemID is set.
func (h *CartHandler) writeCartState(w http.ResponseWriter, r *http.Request, token, itemID, message string) {
	ctx := r.Context()

	count, err := h.cartService.TotalQuantity(ctx, token)
	if err != nil {
		writeCartError(w, r, err)
		return
	}
	total, err := h.cartService.TotalPrice(ctx, token)
	if err != nil {
		writeCartError(w, r, err)
		return
	}

	resp := cartResponse{
		Success:   true,
		Message:   message,
		CartCount: &count,
		CartTotal: money(total),
	}

	if itemID != "" {
		itemTotal, err := h.cartService.ItemTotal(ctx, token, itemID)
		if err != nil {
			writeCartError(w, r, err)
			return
		}
		resp.ItemTotal = money(itemTotal)
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}
