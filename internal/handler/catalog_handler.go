package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"thriftmarket/internal/api"
	"thriftmarket/internal/listing"
	"thriftmarket/internal/models"
)

// CatalogHandler serves the public product listing: search, category filter,
// sort, and pagination over the catalog the backend returns.
type CatalogHandler struct {
	logger     *log.Logger
	catalogAPI *api.CatalogAPI
	pageSize   int
}

func NewCatalogHandler(logger *log.Logger, catalogAPI *api.CatalogAPI, pageSize int) *CatalogHandler {
	return &CatalogHandler{
		logger:     logger,
		catalogAPI: catalogAPI,
		pageSize:   pageSize,
	}
}

func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.logger.Printf("Method not allowed for /products: %s", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := strings.TrimPrefix(r.URL.Path, "/products/"); id != "" && id != r.URL.Path {
		h.serveDetail(w, r, id)
		return
	}

	products, err := h.catalogAPI.ListProducts(r.Context())
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			writeLoginRedirect(w)
			return
		}
		h.logger.Printf("Catalog fetch failed: %v", err)
		http.Error(w, "catalog unavailable", http.StatusBadGateway)
		return
	}

	page := listing.Apply(products, queryFromRequest(r, h.pageSize),
		func(p models.Product) []string { return []string{p.Name, p.Category} },
		func(p models.Product, key, value string) bool {
			if key == "category" {
				return p.Category == value
			}
			return true
		},
		func(a, b models.Product, sortBy string) bool {
			if sortBy == "price" {
				return a.Price.LessThan(b.Price)
			}
			return a.Name < b.Name
		},
	)

	writeJSON(w, h.logger, http.StatusOK, page)
}

func (h *CatalogHandler) serveDetail(w http.ResponseWriter, r *http.Request, id string) {
	product, err := h.catalogAPI.GetProduct(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, api.ErrNotFound):
			http.Error(w, "product not found", http.StatusNotFound)
		case errors.Is(err, api.ErrUnauthorized):
			writeLoginRedirect(w)
		default:
			h.logger.Printf("Product %s fetch failed: %v", id, err)
			http.Error(w, "catalog unavailable", http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, product)
}

// queryFromRequest maps list query parameters onto a listing query. Shared by
// the catalog and admin list handlers.
func queryFromRequest(r *http.Request, pageSize int) listing.Query {
	q := listing.Query{
		Search:   r.URL.Query().Get("search"),
		Filters:  make(map[string]string),
		SortBy:   r.URL.Query().Get("sort"),
		SortDesc: r.URL.Query().Get("order") == "desc",
		Page:     1,
		PageSize: pageSize,
	}
	for _, key := range []string{"category", "status", "rating", "role", "blocked", "active", "in_stock", "product"} {
		if value := r.URL.Query().Get(key); value != "" {
			q.Filters[key] = value
		}
	}
	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		q.Page = page
	}
	return q
}
