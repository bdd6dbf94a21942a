package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/harvest/internal/cache"
	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/telemetry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// CartService provides business logic for shopping cart operations.
//
// Mutations reserve stock: every change to a line item's quantity moves the
// same number of units out of (or back into) the product's stock inside one
// transaction that holds the product row lock.
type CartService interface {
	Add(ctx context.Context, token, productID string, quantity int) error
	Update(ctx context.Context, token, productID string, quantity int) error
	Remove(ctx context.Context, token, productID string) error
	Clear(ctx context.Context, token string) error

	Items(ctx context.Context, token string) ([]CartItem, error)
	TotalPrice(ctx context.Context, token string) (decimal.Decimal, error)
	TotalQuantity(ctx context.Context, token string) (int, error)
	ItemTotal(ctx context.Context, token, productID string) (decimal.Decimal, error)
	ProductName(ctx context.Context, token, productID string) (string, error)
	DisplayName(ctx context.Context, token, productID string) (string, error)
	Summary(ctx context.Context, token string) (*CartSummary, error)
}

// CartItem is a line item joined with the live product record.
type CartItem struct {
	ProductID string
	Product   domain.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// CartSummary aggregates cart items with calculated totals.
type CartSummary struct {
	Items         []CartItem
	TotalPrice    decimal.Decimal
	TotalQuantity int
}

type cartService struct {
	store   domain.InventoryStore
	carts   domain.CartRepository
	cache   cache.CartCache
	metrics *telemetry.CartMetrics
	logger  *slog.Logger

	sfg singleflight.Group
}

// NewCartService creates a new CartService instance.
//
// carts is the unlocked repository used by read paths; mutations go through
// the transaction's own repository. cache and metrics may be nil.
func NewCartService(store domain.InventoryStore, carts domain.CartRepository, c cache.CartCache, metrics *telemetry.CartMetrics, logger *slog.Logger) CartService {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cartService{
		store:   store,
		carts:   carts,
		cache:   c,
		metrics: metrics,
		logger:  logger,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add reserves quantity units of the product and adds them to the cart.
// The line item snapshot is taken from the locked product row on first add.
func (s *cartService) Add(ctx context.Context, token, productID string, quantity int) error {
	const op = "cart.add"

	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if productID == "" {
		return ErrProductIDRequired
	}
	if token == "" {
		return ErrSessionTokenRequired
	}

	var reserved int
	committed, err := s.withExclusiveLock(ctx, op, token, productID, false, func(cart *domain.Cart, p *domain.Product) error {
		if !p.Available {
			return domain.ErrProductUnavailable
		}
		if p.Stock < quantity {
			return domain.InsufficientStock(op, p.ID, quantity, p.Stock)
		}

		p.Stock -= quantity
		reserved = quantity

		item, ok := cart.Get(p.ID)
		if !ok {
			item = domain.NewLineItem(p)
		}
		item.Quantity += quantity
		cart.Put(item)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Reserved(reserved)
	s.afterCommit(ctx, token, committed)
	return nil
}

// Update sets the line item's quantity. Quantities of zero or less remove the
// line item. Increases reserve the difference; decreases release it.
// Updating a product that is not in the cart is a no-op.
func (s *cartService) Update(ctx context.Context, token, productID string, quantity int) error {
	const op = "cart.update"

	if token == "" || productID == "" {
		return nil
	}

	var reserved, released int
	committed, err := s.withExclusiveLock(ctx, op, token, productID, true, func(cart *domain.Cart, p *domain.Product) error {
		item, _ := cart.Get(productID)

		if quantity <= 0 {
			p.Stock += item.Quantity
			released = item.Quantity
			cart.Delete(productID)
			return nil
		}

		diff := quantity - item.Quantity
		switch {
		case diff > 0:
			if p.Stock < diff {
				return domain.InsufficientAdditionalStock(op, p.ID, diff, p.Stock)
			}
			p.Stock -= diff
			reserved = diff
		case diff < 0:
			p.Stock += -diff
			released = -diff
		}

		item.Quantity = quantity
		cart.Put(item)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Reserved(reserved)
	s.metrics.Released(released)
	s.afterCommit(ctx, token, committed)
	return nil
}

// Remove returns the line item's full quantity to stock and deletes it.
// Removing a product that is not in the cart is a no-op.
func (s *cartService) Remove(ctx context.Context, token, productID string) error {
	const op = "cart.remove"

	if token == "" || productID == "" {
		return nil
	}

	var released int
	committed, err := s.withExclusiveLock(ctx, op, token, productID, true, func(cart *domain.Cart, p *domain.Product) error {
		item, _ := cart.Get(productID)
		p.Stock += item.Quantity
		released = item.Quantity
		cart.Delete(productID)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Released(released)
	s.afterCommit(ctx, token, committed)
	return nil
}

// Clear releases the stock of every line item and deletes the cart, all in one
// transaction. Products are locked in ascending id order. If any product can
// no longer be found the whole clear rolls back and nothing is released.
// Clearing an empty cart is a no-op.
func (s *cartService) Clear(ctx context.Context, token string) error {
	const op = "cart.clear"

	if token == "" {
		return nil
	}

	start := time.Now()
	var released int
	var touched bool

	err := s.store.WithTx(ctx, func(tx domain.InventoryTx) error {
		carts := tx.Carts()
		cart, err := carts.Load(ctx, token)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return nil
		}
		touched = true

		for _, id := range cart.ProductIDs() {
			p, err := tx.GetProductForUpdate(ctx, id)
			if err != nil {
				return err
			}
			item, _ := cart.Get(id)
			p.Stock += item.Quantity
			if err := tx.SaveProduct(ctx, p); err != nil {
				return err
			}
			released += item.Quantity
		}

		return carts.Delete(ctx, token)
	})
	s.metrics.ObserveMutation(op, mutationResult(err), time.Since(start).Seconds())
	if err != nil {
		s.logMutationError(ctx, op, token, err)
		return err
	}
	if !touched {
		return nil
	}

	s.metrics.Released(released)

	empty := domain.NewCart()
	empty.Version = time.Now().UnixMicro()
	s.afterCommit(ctx, token, empty)
	return nil
}

// withExclusiveLock runs fn against the session's cart and the locked product
// row inside one transaction, then persists both. The session row is locked
// before the product row.
//
// When requireItem is set and the product has no line item, fn is skipped and
// nothing is written; the returned cart is nil in that case.
func (s *cartService) withExclusiveLock(ctx context.Context, op, token, productID string, requireItem bool, fn func(cart *domain.Cart, p *domain.Product) error) (*domain.Cart, error) {
	start := time.Now()
	var committed *domain.Cart

	err := s.store.WithTx(ctx, func(tx domain.InventoryTx) error {
		carts := tx.Carts()
		cart, err := carts.Load(ctx, token)
		if err != nil {
			return err
		}
		if _, ok := cart.Get(productID); requireItem && !ok {
			return nil
		}

		p, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := fn(cart, p); err != nil {
			return err
		}
		if err := tx.SaveProduct(ctx, p); err != nil {
			return err
		}

		cart.Version = time.Now().UnixMicro()
		if err := carts.Save(ctx, token, cart); err != nil {
			return err
		}
		committed = cart
		return nil
	})
	s.metrics.ObserveMutation(op, mutationResult(err), time.Since(start).Seconds())
	if err != nil {
		s.logMutationError(ctx, op, token, err)
		return nil, err
	}
	return committed, nil
}

// afterCommit writes the committed cart through to the read cache. If the
// write fails the entry is dropped so readers fall back to the store.
func (s *cartService) afterCommit(ctx context.Context, token string, cart *domain.Cart) {
	if cart == nil {
		return
	}
	if err := s.cache.Set(ctx, token, cart); err != nil {
		s.logger.WarnContext(ctx, "cart cache write failed", "error", err)
		if err := s.cache.Delete(ctx, token); err != nil {
			s.logger.WarnContext(ctx, "cart cache delete failed", "error", err)
		}
	}
}

func (s *cartService) logMutationError(ctx context.Context, op, token string, err error) {
	switch domain.ErrorCode(err) {
	case domain.EINTERNAL, domain.ETXFAILED:
		s.logger.ErrorContext(ctx, "cart mutation failed", "op", op, "error", err)
	default:
		s.logger.DebugContext(ctx, "cart mutation rejected", "op", op, "code", domain.ErrorCode(err))
	}
}

func mutationResult(err error) string {
	switch domain.ErrorCode(err) {
	case "":
		return "ok"
	case domain.ECONFLICT:
		return "conflict"
	case domain.ENOTFOUND:
		return "not_found"
	case domain.ETXFAILED:
		return "tx_failed"
	default:
		return "error"
	}
}

// =============================================================================
// READS
// =============================================================================

// load returns a private copy of the committed cart. Concurrent loads for the
// same token share one store round trip.
func (s *cartService) load(ctx context.Context, token string) (*domain.Cart, error) {
	if token == "" {
		return domain.NewCart(), nil
	}

	v, err, _ := s.sfg.Do(token, func() (any, error) {
		cart, err := s.cache.Get(ctx, token)
		if err == nil {
			s.metrics.CacheLookup("hit")
			return cart, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.CacheLookup("miss")
		} else {
			s.metrics.CacheLookup("error")
			s.logger.WarnContext(ctx, "cart cache read failed", "error", err)
		}

		cart, err = s.carts.Load(ctx, token)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, token, cart); err != nil {
			s.logger.WarnContext(ctx, "cart cache fill failed", "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart).Clone(), nil
}

// Items returns the line items joined with live product data, ordered by
// product id. Items whose product has been deleted from the catalog are skipped.
func (s *cartService) Items(ctx context.Context, token string) ([]CartItem, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.items(ctx, cart)
}

func (s *cartService) items(ctx context.Context, cart *domain.Cart) ([]CartItem, error) {
	if cart.IsEmpty() {
		return []CartItem{}, nil
	}

	ids := cart.ProductIDs()
	products, err := s.store.BulkGetProducts(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "cart.items", "failed to load cart products")
	}

	items := make([]CartItem, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			continue
		}
		li, _ := cart.Get(id)
		items = append(items, CartItem{
			ProductID: id,
			Product:   p,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			LineTotal: li.Total(),
		})
	}
	return items, nil
}

func (s *cartService) TotalPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.TotalPrice(), nil
}

func (s *cartService) TotalQuantity(ctx context.Context, token string) (int, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return 0, err
	}
	return cart.TotalQuantity(), nil
}

func (s *cartService) ItemTotal(ctx context.Context, token, productID string) (decimal.Decimal, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return cart.ItemTotal(productID), nil
}

// ProductName returns the snapshot name for the product, or
// domain.UnknownProductName when it is not in the cart.
func (s *cartService) ProductName(ctx context.Context, token, productID string) (string, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	return cart.ProductName(productID), nil
}

// DisplayName returns the snapshot name for a product in the cart, otherwise
// the live catalog name. Returns ErrProductNotFound when the product is in
// neither.
func (s *cartService) DisplayName(ctx context.Context, token, productID string) (string, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	if item, ok := cart.Get(productID); ok {
		return item.Name, nil
	}

	products, err := s.store.BulkGetProducts(ctx, []string{productID})
	if err != nil {
		return "", domain.WrapError(err, domain.EINTERNAL, "cart.display_name", "failed to load product")
	}
	p, ok := products[productID]
	if !ok {
		return "", domain.ErrProductNotFound
	}
	return p.Name, nil
}

// Summary returns items and totals computed from a single cart read.
func (s *cartService) Summary(ctx context.Context, token string) (*CartSummary, error) {
	cart, err := s.load(ctx, token)
	if err != nil {
		return nil, err
	}

	items, err := s.items(ctx, cart)
	if err != nil {
		return nil, err
	}

	return &CartSummary{
		Items:         items,
		TotalPrice:    cart.TotalPrice(),
		TotalQuantity: cart.TotalQuantity(),
	}, nil
}
