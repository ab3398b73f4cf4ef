package checkout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/sipasera/internal/cart"
	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
)

const idempotencyScope = "checkout"

type Handler struct {
	httpx.Responder
	checkout *Orchestrator
	idem     idempotency.Store
}

// NewHandler serves checkout. idem may be nil to disable deduplication.
func NewHandler(checkout *Orchestrator, idem idempotency.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		checkout:  checkout,
		idem:      idem,
	}
}

type checkoutRequest struct {
	Method domain.PaymentMethod `json:"method"`
	Items  []cart.Line          `json:"items,omitempty"`
}

type checkoutResponse struct {
	httpx.Message
	*Result
}

type replayResponse struct {
	httpx.Message
	OrderID string `json:"order_id"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if !h.Decode(w, r, &req) {
		return
	}

	key := r.Header.Get(idempotency.Header)
	if key != "" && h.idem != nil {
		existing, err := h.idem.Begin(r.Context(), idempotencyScope, userID, key)
		if err != nil {
			h.Fail(w, err, "claim idempotency key", "user_id", userID)
			return
		}
		if existing != "" {
			h.JSON(w, http.StatusOK, replayResponse{
				Message: httpx.Message{Message: "Order was already placed", Severity: httpx.SeverityInfo},
				OrderID: existing,
			})
			return
		}
	}

	res, err := h.checkout.Checkout(r.Context(), Request{
		OwnerID: userID,
		Method:  req.Method,
		Items:   req.Items,
	})
	if err != nil {
		h.release(r.Context(), userID, key)
		h.Fail(w, err, "checkout", "user_id", userID, "method", req.Method)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Complete(r.Context(), idempotencyScope, userID, key, res.Order.ID); err != nil {
			h.Logger.Error("failed to record idempotency key", "error", err, "order_id", res.Order.ID)
		}
	}

	h.JSON(w, http.StatusCreated, checkoutResponse{
		Message: httpx.Message{Message: "Order placed successfully", Severity: httpx.SeveritySuccess},
		Result:  res,
	})
}

func (h *Handler) release(ctx context.Context, userID, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Release(ctx, idempotencyScope, userID, key); err != nil {
		h.Logger.Error("failed to release idempotency key", "error", err, "user_id", userID)
	}
}
