package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogStore implements domain.CatalogStore using PostgreSQL.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that CatalogStore implements domain.CatalogStore.
var _ domain.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore creates a new PostgreSQL-backed catalog store.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// productOrder maps sort keys to ORDER BY clauses. Unknown keys fall back to newest.
var productOrder = map[string]string{
	domain.SortNewest:    "p.created_at DESC, p.id",
	domain.SortPriceAsc:  "p.price ASC, p.id",
	domain.SortPriceDesc: "p.price DESC, p.id",
	domain.SortNameAsc:   "p.name ASC, p.id",
	domain.SortNameDesc:  "p.name DESC, p.id",
}

// productFilterClause matches available products in a category (or its direct
// children) whose name or description contains the search pattern.
const productFilterClause = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	WHERE p.available
	  AND ($1::text = '' OR c.slug = $1 OR c.parent_id = (SELECT id FROM categories WHERE slug = $1))
	  AND ($2::text = '' OR p.name ILIKE $2 OR p.description ILIKE $2)`

// =============================================================================
// CATEGORIES
// =============================================================================

func (s *CatalogStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, slug, parent_id::text
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_categories", "failed to list categories")
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, domain.Internal(err, "catalog.list_categories", "failed to scan category")
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.list_categories", "failed to list categories")
	}
	return categories, nil
}

func (s *CatalogStore) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	cid, ok := parseID(id)
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}

	c, err := scanCategory(s.pool.QueryRow(ctx, `
		SELECT id::text, name, slug, parent_id::text
		FROM categories
		WHERE id = $1`, cid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCategoryNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "catalog.get_category", "failed to get category")
	}
	return c, nil
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		c        domain.Category
		parentID pgtype.Text
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &parentID); err != nil {
		return nil, err
	}
	c.ParentID = textValue(parentID)
	return &c, nil
}

// =============================================================================
// PRODUCTS
// =============================================================================

// ListProducts returns one page of available products and the total match count.
func (s *CatalogStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int, error) {
	const op = "catalog.list_products"

	pattern := ""
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern = "%" + escapeLike(q) + "%"
	}

	var total int
	err := s.pool.QueryRow(ctx, `SELECT count(*)`+productFilterClause, filter.Category, pattern).Scan(&total)
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to count products")
	}

	order, ok := productOrder[filter.Sort]
	if !ok {
		order = productOrder[domain.SortNewest]
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+productFilterClause+`
		ORDER BY `+order+`
		LIMIT $3 OFFSET $4`,
		filter.Category, pattern, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.PageSize)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, domain.Internal(err, op, "failed to scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.Internal(err, op, "failed to list products")
	}
	return products, total, nil
}

// GetProductBySlug returns a product regardless of its availability.
func (s *CatalogStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "catalog.get_product", "failed to get product")
	}
	return p, nil
}

// =============================================================================
// REVIEWS & SPECS
// =============================================================================

func (s *CatalogStore) ListReviews(ctx context.Context, productID string) ([]domain.Review, error) {
	pid, ok := parseID(productID)
	if !ok {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.id::text, r.product_id::text, r.user_id::text,
		       COALESCE(NULLIF(u.username, ''), NULLIF(trim(u.first_name || ' ' || u.last_name), ''), 'Anonymous'),
		       r.rating, r.comment, r.created_at
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC`, pid)
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_reviews", "failed to list reviews")
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var (
			r      domain.Review
			userID pgtype.Text
		)
		if err := rows.Scan(&r.ID, &r.ProductID, &userID, &r.Reviewer, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, domain.Internal(err, "catalog.list_reviews", "failed to scan review")
		}
		r.UserID = textValue(userID)
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.list_reviews", "failed to list reviews")
	}
	return reviews, nil
}

func (s *CatalogStore) ListTechSpecs(ctx context.Context, productID string) ([]domain.TechSpec, error) {
	pid, ok := parseID(productID)
	if !ok {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT name, value, position
		FROM product_specs
		WHERE product_id = $1
		ORDER BY position, id`, pid)
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_specs", "failed to list specs")
	}
	defer rows.Close()

	specs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TechSpec])
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_specs", fmt.Sprintf("failed to scan specs for %s", productID))
	}
	return specs, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
