// Package memory provides an in-process InventoryStore with row-level locking.
//
// It mirrors the transactional guarantees of the Postgres store: rows are locked
// on first access and held until the transaction ends, and writes are buffered
// and applied together on commit. Service tests use it to exercise concurrency
// without a database.
package memory

import (
	"context"
	"sync"

	"github.com/dukerupert/harvest/internal/domain"
)

// Store is a thread-safe in-memory product and cart store.
type Store struct {
	mu       sync.Mutex
	products map[string]domain.Product
	carts    map[string]*domain.Cart
	rows     map[string]*sync.Mutex

	commitErr error
	commits   int
}

// Compile-time check that Store implements domain.InventoryStore.
var _ domain.InventoryStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		carts:    make(map[string]*domain.Cart),
		rows:     make(map[string]*sync.Mutex),
	}
}

// PutProduct inserts or replaces a product outside any transaction.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// DeleteProduct removes a product outside any transaction.
func (s *Store) DeleteProduct(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// FailNextCommit makes the next commit fail with err after fn has run.
// The transaction's writes are discarded.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Commits returns the number of successful commits.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Carts returns an unlocked cart repository over committed state.
func (s *Store) Carts() domain.CartRepository {
	return committedCarts{s: s}
}

// BulkGetProducts reads committed products without locking.
func (s *Store) BulkGetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// WithTx runs fn in a transaction. Locks are released after commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.InventoryTx) error) error {
	t := &tx{
		s:        s,
		held:     make(map[string]*sync.Mutex),
		products: make(map[string]domain.Product),
		carts:    make(map[string]*domain.Cart),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		return domain.TransactionFailure(err, "memory.commit")
	}

	for id, p := range t.products {
		s.products[id] = p
	}
	for token, cart := range t.carts {
		if cart == nil {
			delete(s.carts, token)
			continue
		}
		s.carts[token] = cart
	}
	s.commits++
	return nil
}

func (s *Store) row(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[key]
	if !ok {
		m = &sync.Mutex{}
		s.rows[key] = m
	}
	return m
}

// tx buffers writes and holds row locks until release.
type tx struct {
	s        *Store
	held     map[string]*sync.Mutex
	order    []string
	products map[string]domain.Product
	carts    map[string]*domain.Cart // nil value marks a delete
}

func (t *tx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.s.row(key)
	m.Lock()
	t.held[key] = m
	t.order = append(t.order, key)
}

func (t *tx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.held[t.order[i]].Unlock()
	}
}

func (t *tx) GetProductForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	t.lock("product:" + id)

	if p, ok := t.products[id]; ok {
		return &p, nil
	}

	p, ok := t.s.Product(id)
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (t *tx) SaveProduct(ctx context.Context, p *domain.Product) error {
	if _, ok := t.held["product:"+p.ID]; !ok {
		return domain.Internal(nil, "memory.save_product", "product saved without lock")
	}
	t.products[p.ID] = *p
	return nil
}

func (t *tx) Carts() domain.CartRepository {
	return txCarts{t: t}
}

// txCarts locks the session row on Load.
type txCarts struct {
	t *tx
}

func (c txCarts) Load(ctx context.Context, token string) (*domain.Cart, error) {
	c.t.lock("session:" + token)

	if cart, ok := c.t.carts[token]; ok {
		if cart == nil {
			return domain.NewCart(), nil
		}
		return cart.Clone(), nil
	}
	return committedCarts{s: c.t.s}.Load(ctx, token)
}

func (c txCarts) Save(ctx context.Context, token string, cart *domain.Cart) error {
	c.t.lock("session:" + token)
	c.t.carts[token] = cart.Clone()
	return nil
}

func (c txCarts) Delete(ctx context.Context, token string) error {
	c.t.lock("session:" + token)
	c.t.carts[token] = nil
	return nil
}

// committedCarts reads and writes committed state directly.
type committedCarts struct {
	s *Store
}

func (c committedCarts) Load(ctx context.Context, token string) (*domain.Cart, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if cart, ok := c.s.carts[token]; ok {
		return cart.Clone(), nil
	}
	return domain.NewCart(), nil
}

func (c committedCarts) Save(ctx context.Context, token string, cart *domain.Cart) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.carts[token] = cart.Clone()
	return nil
}

func (c committedCarts) Delete(ctx context.Context, token string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	delete(c.s.carts, token)
	return nil
}
