package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/harvest/internal/cookie"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/memory"
	"github.com/dukerupert/harvest/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCartService implements service.CartService for testing
type mockCartService struct {
	addFunc           func(ctx context.Context, token, productID string, quantity int) error
	updateFunc        func(ctx context.Context, token, productID string, quantity int) error
	removeFunc        func(ctx context.Context, token, productID string) error
	clearFunc         func(ctx context.Context, token string) error
	totalPriceFunc    func(ctx context.Context, token string) (decimal.Decimal, error)
	totalQuantityFunc func(ctx context.Context, token string) (int, error)
	summaryFunc       func(ctx context.Context, token string) (*service.CartSummary, error)
}

func (m *mockCartService) Add(ctx context.Context, token, productID string, quantity int) error {
	if m.addFunc != nil {
		return m.addFunc(ctx, token, productID, quantity)
	}
	return nil
}

func (m *mockCartService) Update(ctx context.Context, token, productID string, quantity int) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, token, productID, quantity)
	}
	return nil
}

func (m *mockCartService) Remove(ctx context.Context, token, productID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, token, productID)
	}
	return nil
}

func (m *mockCartService) Clear(ctx context.Context, token string) error {
	if m.clearFunc != nil {
		return m.clearFunc(ctx, token)
	}
	return nil
}

func (m *mockCartService) Items(ctx context.Context, token string) ([]service.CartItem, error) {
	return nil, nil
}

func (m *mockCartService) TotalPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	if m.totalPriceFunc != nil {
		return m.totalPriceFunc(ctx, token)
	}
	return decimal.Zero, nil
}

func (m *mockCartService) TotalQuantity(ctx context.Context, token string) (int, error) {
	if m.totalQuantityFunc != nil {
		return m.totalQuantityFunc(ctx, token)
	}
	return 0, nil
}

func (m *mockCartService) ItemTotal(ctx context.Context, token, productID string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (m *mockCartService) ProductName(ctx context.Context, token, productID string) (string, error) {
	return domain.UnknownProductName, nil
}

func (m *mockCartService) DisplayName(ctx context.Context, token, productID string) (string, error) {
	return "Heirloom Carrots", nil
}

func (m *mockCartService) Summary(ctx context.Context, token string) (*service.CartSummary, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, token)
	}
	return &service.CartSummary{}, nil
}

type envelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	CartCount *int   `json:"cart_count"`
	CartTotal string `json:"cart_total"`
	ItemTotal string `json:"item_total"`
}

func newCartTestHandler(t *testing.T, products ...domain.Product) (*CartHandler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, p := range products {
		store.PutProduct(p)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewCartService(store, store.Carts(), nil, nil, logger)
	return NewCartHandler(svc, cookie.NewConfig("", false, 30*24*time.Hour)), store
}

func carrots(stock int) domain.Product {
	return domain.Product{
		ID:          "p-carrots",
		Name:        "Heirloom Carrots",
		Slug:        "heirloom-carrots",
		Price:       decimal.RequireFromString("2.00"),
		Currency:    domain.DefaultCurrency,
		UnitMeasure: domain.DefaultUnitMeasure,
		Stock:       stock,
		Available:   true,
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	h(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestCartHandler_Add_MintsSession(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))

	rec, env := postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":3}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Heirloom Carrots added to cart", env.Message)
	require.NotNil(t, env.CartCount)
	assert.Equal(t, 3, *env.CartCount)
	assert.Equal(t, "6.00", env.CartTotal)
	assert.Empty(t, env.ItemTotal)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookie.SessionCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 7, p.Stock)
}

func TestCartHandler_Add_DefaultQuantity(t *testing.T) {
	h, _ := newCartTestHandler(t, carrots(10))

	_, env := postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots"}`, "tok")
	require.True(t, env.Success)
	assert.Equal(t, 1, *env.CartCount)
}

func TestCartHandler_Add_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"missing product id", `{"quantity":1}`, http.StatusBadRequest, "Product ID is required"},
		{"zero quantity", `{"product_id":"p-carrots","quantity":0}`, http.StatusBadRequest, "Quantity must be greater than 0"},
		{"unknown product", `{"product_id":"nope"}`, http.StatusNotFound, "Product not found"},
		{"insufficient stock", `{"product_id":"p-carrots","quantity":11}`, http.StatusConflict, "Only 10 items available in stock"},
		{"malformed json", `{"product_id":`, http.StatusBadRequest, "Invalid JSON body"},
		{"wrong type", `{"product_id":"p-carrots","quantity":"two"}`, http.StatusBadRequest, "Invalid value for quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, store := newCartTestHandler(t, carrots(10))

			rec, env := postJSON(t, h.Add, "/cart/add", tt.body, "tok")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantError, env.Error)
			assert.Nil(t, env.CartCount)

			p, _ := store.Product("p-carrots")
			assert.Equal(t, 10, p.Stock)
		})
	}
}

func TestCartHandler_Add_BodyTooLarge(t *testing.T) {
	h, _ := newCartTestHandler(t, carrots(10))

	body := `{"product_id":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader(body))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	h.Add(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCartHandler_Update(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))
	_, env := postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":7}`, "tok")
	require.True(t, env.Success)

	rec, env := postJSON(t, h.Update, "/cart/update", `{"product_id":"p-carrots","quantity":2}`, "tok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Heirloom Carrots quantity updated to 2", env.Message)
	assert.Equal(t, 2, *env.CartCount)
	assert.Equal(t, "4.00", env.CartTotal)
	assert.Equal(t, "4.00", env.ItemTotal)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 8, p.Stock)
}

func TestCartHandler_Update_IncreaseBeyondStock(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(5))
	postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":5}`, "tok")

	rec, env := postJSON(t, h.Update, "/cart/update", `{"product_id":"p-carrots","quantity":6}`, "tok")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Only 0 additional items available", env.Error)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 0, p.Stock)
}

func TestCartHandler_Update_ProductNotInCart(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))

	t.Run("catalog product reports its live name", func(t *testing.T) {
		rec, env := postJSON(t, h.Update, "/cart/update", `{"product_id":"p-carrots","quantity":3}`, "tok")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, "Heirloom Carrots quantity updated to 3", env.Message)
		assert.Equal(t, 0, *env.CartCount)

		p, _ := store.Product("p-carrots")
		assert.Equal(t, 10, p.Stock)
	})

	t.Run("unknown product is not found", func(t *testing.T) {
		rec, env := postJSON(t, h.Update, "/cart/update", `{"product_id":"p-missing","quantity":3}`, "tok")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Product not found", env.Error)
		assert.NotContains(t, rec.Body.String(), "Unknown Product")
	})
}

func TestCartHandler_Update_ZeroRemoves(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))
	postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":4}`, "tok")

	_, env := postJSON(t, h.Update, "/cart/update", `{"product_id":"p-carrots","quantity":0}`, "tok")

	assert.True(t, env.Success)
	assert.Equal(t, "Heirloom Carrots removed from cart", env.Message)
	assert.Equal(t, 0, *env.CartCount)
	assert.Equal(t, "0.00", env.CartTotal)
	assert.Equal(t, "0.00", env.ItemTotal)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 10, p.Stock)
}

func TestCartHandler_Remove(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))
	postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":4}`, "tok")

	rec, env := postJSON(t, h.Remove, "/cart/remove", `{"product_id":"p-carrots"}`, "tok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Heirloom Carrots removed from cart", env.Message)
	assert.Equal(t, 0, *env.CartCount)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 10, p.Stock)

	// Removing again is a no-op that reports the live name
	_, env = postJSON(t, h.Remove, "/cart/remove", `{"product_id":"p-carrots"}`, "tok")
	assert.True(t, env.Success)
	assert.Equal(t, "Heirloom Carrots removed from cart", env.Message)

	rec, env = postJSON(t, h.Remove, "/cart/remove", `{"product_id":"p-missing"}`, "tok")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Product not found", env.Error)
}

func TestCartHandler_Clear(t *testing.T) {
	h, store := newCartTestHandler(t, carrots(10))
	postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":6}`, "tok")

	_, env := postJSON(t, h.Clear, "/cart/clear", ``, "tok")

	assert.True(t, env.Success)
	assert.Equal(t, 0, *env.CartCount)

	p, _ := store.Product("p-carrots")
	assert.Equal(t, 10, p.Stock)
}

func TestCartHandler_View(t *testing.T) {
	h, _ := newCartTestHandler(t, carrots(10))
	postJSON(t, h.Add, "/cart/add", `{"product_id":"p-carrots","quantity":3}`, "tok")

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: cookie.SessionCookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	h.View(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body cartViewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.CartCount)
	assert.Equal(t, "6.00", body.CartTotal)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Heirloom Carrots", body.Items[0].Name)
	assert.Equal(t, "2.00", body.Items[0].UnitPrice)
	assert.Equal(t, "6.00", body.Items[0].LineTotal)
	assert.Equal(t, 7, body.Items[0].Stock)
}

func TestCartHandler_View_NoSession(t *testing.T) {
	h, _ := newCartTestHandler(t)

	rec := httptest.NewRecorder()
	h.View(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"cart_count":0,"cart_total":"0.00"}`, rec.Body.String())
}

func TestCartHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "transaction failure",
			err:        domain.TransactionFailure(errors.New("deadlock detected"), "inventory.commit"),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "The operation could not be completed. Please try again.",
		},
		{
			name:       "internal error hides details",
			err:        errors.New("pq: connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "An internal error occurred. Please try again later.",
		},
		{
			name:       "unavailable product",
			err:        domain.ErrProductUnavailable,
			wantStatus: http.StatusNotFound,
			wantError:  "Product is not available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCartHandler(&mockCartService{
				addFunc: func(ctx context.Context, token, productID string, quantity int) error {
					return tt.err
				},
			}, cookie.NewConfig("", false, time.Hour))

			rec, env := postJSON(t, h.Add, "/cart/add", `{"product_id":"p1"}`, "tok")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantError, env.Error)
			assert.NotContains(t, rec.Body.String(), "deadlock")
			assert.NotContains(t, rec.Body.String(), "pq:")
		})
	}
}

func TestCartHandler_UsesContextToken(t *testing.T) {
	var gotToken string
	h := NewCartHandler(&mockCartService{
		clearFunc: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	}, cookie.NewConfig("", false, time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/cart/clear", nil)
	req = req.WithContext(domain.NewContextWithSessionToken(req.Context(), "from-context"))
	rec := httptest.NewRecorder()
	h.Clear(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "from-context", gotToken)
}
