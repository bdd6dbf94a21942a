package storefront

import (
	"net/http"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/handler"
	"github.com/shopspring/decimal"
)

// money formats a decimal as a two-place string for JSON responses.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// cartResponse is the envelope returned by the cart mutation endpoints.
type cartResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	CartCount *int   `json:"cart_count,omitempty"`
	CartTotal string `json:"cart_total,omitempty"`
	ItemTotal string `json:"item_total,omitempty"`
}

// writeCartError writes the failure envelope with the status mapped from err.
func writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.ErrorStatus(err)
	handler.LogError(r, err, status)

	handler.WriteJSON(w, status, cartResponse{Success: false, Error: domain.ErrorMessage(err)})
}
