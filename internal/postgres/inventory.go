package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// productColumns is the select list understood by scanProduct.
const productColumns = `
	p.id::text, p.category_id::text, p.name, p.slug, p.description,
	p.price::text, p.currency, p.unit_measure, p.image_url,
	p.stock, p.available, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p          domain.Product
		categoryID pgtype.Text
		price      string
	)
	err := row.Scan(
		&p.ID, &categoryID, &p.Name, &p.Slug, &p.Description,
		&price, &p.Currency, &p.UnitMeasure, &p.ImageURL,
		&p.Stock, &p.Available, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CategoryID = textValue(categoryID)
	if p.Price, err = parsePrice(price); err != nil {
		return nil, fmt.Errorf("invalid price %q for product %s: %w", price, p.ID, err)
	}
	return &p, nil
}

// InventoryStore implements domain.InventoryStore using PostgreSQL.
//
// Transactions run at READ COMMITTED. Product rows are locked with
// SELECT ... FOR UPDATE and session rows are locked when a cart is loaded,
// so the lock is held until commit or rollback.
type InventoryStore struct {
	pool       *pgxpool.Pool
	sessionTTL time.Duration
}

// Compile-time check that InventoryStore implements domain.InventoryStore.
var _ domain.InventoryStore = (*InventoryStore)(nil)

// NewInventoryStore creates a new PostgreSQL-backed inventory store.
// sessionTTL is applied to sessions created or extended by cart writes.
func NewInventoryStore(pool *pgxpool.Pool, sessionTTL time.Duration) *InventoryStore {
	return &InventoryStore{
		pool:       pool,
		sessionTTL: sessionTTL,
	}
}

// WithTx runs fn in a transaction and commits if fn returns nil.
func (s *InventoryStore) WithTx(ctx context.Context, fn func(tx domain.InventoryTx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.TransactionFailure(err, "inventory.begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&inventoryTx{tx: tx, sessionTTL: s.sessionTTL}); err != nil {
		return txError(err, "inventory.tx")
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.TransactionFailure(err, "inventory.commit")
	}
	return nil
}

// BulkGetProducts reads products by id without locking.
func (s *InventoryStore) BulkGetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))

	ids = validIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return out, nil
}

// inventoryTx is the transactional view handed to WithTx callbacks.
type inventoryTx struct {
	tx         pgx.Tx
	sessionTTL time.Duration
}

func (t *inventoryTx) GetProductForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	pid, ok := parseID(id)
	if !ok {
		return nil, domain.ErrProductNotFound
	}

	p, err := scanProduct(t.tx.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.id = $1
		FOR UPDATE`, pid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		if isTxConflict(err) {
			return nil, domain.TransactionFailure(err, "inventory.lock_product")
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return p, nil
}

func (t *inventoryTx) SaveProduct(ctx context.Context, p *domain.Product) error {
	pid, ok := parseID(p.ID)
	if !ok {
		return domain.ErrProductNotFound
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock = $2, price = $3::numeric, available = $4, updated_at = now()
		WHERE id = $1`,
		pid, p.Stock, p.Price.StringFixed(2), p.Available)
	if err != nil {
		if isTxConflict(err) {
			return domain.TransactionFailure(err, "inventory.save_product")
		}
		return fmt.Errorf("failed to save product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (t *inventoryTx) Carts() domain.CartRepository {
	return &CartRepository{db: t.tx, lock: true, sessionTTL: t.sessionTTL}
}
