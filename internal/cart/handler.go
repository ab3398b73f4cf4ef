package cart

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Handler struct {
	httpx.Responder
	carts    Store
	products store.ProductStore
}

func NewHandler(carts Store, products store.ProductStore, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		carts:     carts,
		products:  products,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	lines, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "read cart", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, lines)
}

type setItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleSetItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	productID := r.PathValue("productId")
	if productID == "" {
		h.Error(w, http.StatusBadRequest, "missing product id")
		return
	}

	var req setItemRequest
	if !h.Decode(w, r, &req) {
		return
	}

	if req.Quantity > 0 {
		product, err := h.products.GetProduct(r.Context(), productID)
		if err != nil {
			h.Fail(w, err, "get product", "product_id", productID)
			return
		}
		if product == nil {
			h.Error(w, http.StatusNotFound, "product not found")
			return
		}
	}

	if err := h.carts.Set(r.Context(), userID, productID, req.Quantity); err != nil {
		h.Fail(w, err, "update cart", "user_id", userID, "product_id", productID)
		return
	}

	lines, err := h.carts.Items(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "read cart", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, lines)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		h.Fail(w, err, "clear cart", "user_id", userID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
