// Package catalog serves the product list customers order from.
package catalog

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Handler struct {
	httpx.Responder
	products store.ProductStore
}

func NewHandler(products store.ProductStore, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		products:  products,
	}
}

// HandleList lists products, optionally filtered by ?category= and a
// case-insensitive ?q= name search.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		h.Fail(w, err, "list products")
		return
	}

	category := r.URL.Query().Get("category")
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	if category != "" || search != "" {
		filtered := make([]domain.Product, 0, len(products))
		for _, p := range products {
			if category != "" && p.Category != category {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
				continue
			}
			filtered = append(filtered, p)
		}
		products = filtered
	}

	h.JSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	if productID == "" {
		h.Error(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		h.Fail(w, err, "get product", "product_id", productID)
		return
	}

	if product == nil {
		h.Error(w, http.StatusNotFound, "product not found")
		return
	}

	h.JSON(w, http.StatusOK, product)
}
