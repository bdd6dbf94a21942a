package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/dukerupert/harvest/internal/domain"
)

// CatalogService provides read-only catalog browsing.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error)
	GetProductDetail(ctx context.Context, slug string) (*domain.ProductDetail, error)
}

type catalogService struct {
	store domain.CatalogStore
}

// NewCatalogService creates a new CatalogService instance
func NewCatalogService(store domain.CatalogStore) CatalogService {
	return &catalogService{store: store}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

// ListProducts returns one page of available products. Out-of-range paging
// values are clamped and unknown sort keys fall back to newest first.
func (s *catalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) (*domain.ProductPage, error) {
	filter = normalizeFilter(filter)

	items, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Product{}
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.PageSize)))
	return &domain.ProductPage{
		Items:      items,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    filter.Page > 1,
		HasNext:    filter.Page < totalPages,
	}, nil
}

func normalizeFilter(f domain.ProductFilter) domain.ProductFilter {
	f.Category = strings.TrimSpace(f.Category)
	f.Query = strings.TrimSpace(f.Query)

	switch {
	case f.Page < 1:
		f.Page = 1
	case f.Page > domain.MaxPage:
		f.Page = domain.MaxPage
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = domain.DefaultPageSize
	case f.PageSize > domain.MaxPageSize:
		f.PageSize = domain.MaxPageSize
	}

	switch f.Sort {
	case domain.SortNewest, domain.SortPriceAsc, domain.SortPriceDesc, domain.SortNameAsc, domain.SortNameDesc:
	default:
		f.Sort = domain.SortNewest
	}
	return f
}

// GetProductDetail aggregates a product with its category, reviews and specs.
// Unavailable products are still returned.
func (s *catalogService) GetProductDetail(ctx context.Context, slug string) (*domain.ProductDetail, error) {
	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	detail := &domain.ProductDetail{
		Product:     *p,
		StockStatus: p.StockStatus(),
		Reviews:     []domain.Review{},
		Specs:       []domain.TechSpec{},
	}

	if p.CategoryID != "" {
		c, err := s.store.GetCategory(ctx, p.CategoryID)
		switch {
		case err == nil:
			detail.Category = *c
		case !errors.Is(err, domain.ErrCategoryNotFound):
			return nil, err
		}
	}

	reviews, err := s.store.ListReviews(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(reviews) > 0 {
		detail.Reviews = reviews
		detail.ReviewCount = len(reviews)
		detail.AverageRating = averageRating(reviews)
	}

	specs, err := s.store.ListTechSpecs(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		detail.Specs = specs
	}

	return detail, nil
}

// averageRating returns the mean rating rounded to one decimal place.
func averageRating(reviews []domain.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*10) / 10
}
