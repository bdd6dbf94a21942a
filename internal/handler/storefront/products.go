package storefront

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/harvest/internal/domain"
	"github.com/dukerupert/harvest/internal/handler"
	"github.com/dukerupert/harvest/internal/service"
)

// CatalogHandler serves the product listing, product detail and category routes
type CatalogHandler struct {
	catalogService service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

type productJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	UnitMeasure string `json:"unit_measure"`
	ImageURL    string `json:"image_url,omitempty"`
	Stock       int    `json:"stock"`
	Available   bool   `json:"available"`
	CategoryID  string `json:"category_id,omitempty"`
}

func toProductJSON(p domain.Product) productJSON {
	return productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       money(p.Price),
		Currency:    p.Currency,
		UnitMeasure: p.UnitMeasure,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		Available:   p.Available,
		CategoryID:  p.CategoryID,
	}
}

type categoryJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID string `json:"parent_id,omitempty"`
}

type productPageJSON struct {
	Items      []productJSON `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
}

type reviewJSON struct {
	Reviewer  string    `json:"reviewer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type specJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type productDetailJSON struct {
	Product       productJSON   `json:"product"`
	Category      *categoryJSON `json:"category,omitempty"`
	StockStatus   string        `json:"stock_status"`
	AverageRating float64       `json:"average_rating"`
	ReviewCount   int           `json:"review_count"`
	Reviews       []reviewJSON  `json:"reviews"`
	Specs         []specJSON    `json:"specs"`
}

// List handles GET /products
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := h.catalogService.ListProducts(r.Context(), domain.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Sort:     q.Get("sort"),
		Page:     queryInt(q.Get("page")),
		PageSize: queryInt(q.Get("page_size")),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := productPageJSON{
		Items:      make([]productJSON, 0, len(page.Items)),
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
		HasPrev:    page.HasPrev,
		HasNext:    page.HasNext,
	}
	for _, p := range page.Items {
		resp.Items = append(resp.Items, toProductJSON(p))
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}

// Detail handles GET /products/{slug}
func (h *CatalogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.catalogService.GetProductDetail(r.Context(), r.PathValue("slug"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := productDetailJSON{
		Product:       toProductJSON(detail.Product),
		StockStatus:   detail.StockStatus,
		AverageRating: detail.AverageRating,
		ReviewCount:   detail.ReviewCount,
		Reviews:       make([]reviewJSON, 0, len(detail.Reviews)),
		Specs:         make([]specJSON, 0, len(detail.Specs)),
	}
	if detail.Category.ID != "" {
		resp.Category = &categoryJSON{
			ID:       detail.Category.ID,
			Name:     detail.Category.Name,
			Slug:     detail.Category.Slug,
			ParentID: detail.Category.ParentID,
		}
	}
	for _, rv := range detail.Reviews {
		resp.Reviews = append(resp.Reviews, reviewJSON{
			Reviewer:  rv.Reviewer,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt,
		})
	}
	for _, s := range detail.Specs {
		resp.Specs = append(resp.Specs, specJSON{Name: s.Name, Value: s.Value})
	}

	handler.WriteJSON(w, http.StatusOK, resp)
}

// Categories handles GET /categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	resp := make([]categoryJSON, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryJSON{ID: c.ID, Name: c.Name, Slug: c.Slug, ParentID: c.ParentID})
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": resp})
}

// queryInt parses a numeric query parameter. Invalid values read as zero,
// which the catalog service replaces with its default.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
