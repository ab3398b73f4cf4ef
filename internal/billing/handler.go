package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/id"
	"github.com/joao-fontenele/sipasera/internal/idempotency"
)

const idempotencyScope = "payment"

type Handler struct {
	httpx.Responder
	billing *Orchestrator
	idem    idempotency.Store
}

// NewHandler serves repayments. idem may be nil to disable deduplication.
func NewHandler(billing *Orchestrator, idem idempotency.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		billing:   billing,
		idem:      idem,
	}
}

type payRequest struct {
	Amount    decimal.Decimal      `json:"amount"`
	PayInFull bool                 `json:"pay_in_full"`
	Method    domain.PaymentMethod `json:"method"`
	Note      string               `json:"note"`
}

type payResponse struct {
	httpx.Message
	*Result
}

type replayResponse struct {
	httpx.Message
	PaymentID string `json:"payment_id"`
}

func (h *Handler) HandlePay(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("id")
	if id.Check(orderID, id.PrefixOrder) != nil {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	var req payRequest
	if !h.Decode(w, r, &req) {
		return
	}

	var amount domain.Money
	if !req.PayInFull {
		var err error
		if amount, err = domain.MoneyFromDecimal(req.Amount); err != nil {
			h.Fail(w, err, "parse amount")
			return
		}
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
				Message:   httpx.Message{Message: "Payment was already recorded", Severity: httpx.SeverityInfo},
				PaymentID: existing,
			})
			return
		}
	}

	res, err := h.billing.Pay(r.Context(), Request{
		OwnerID:   userID,
		OrderID:   orderID,
		Amount:    amount,
		PayInFull: req.PayInFull,
		Method:    req.Method,
		Note:      req.Note,
	})
	if err != nil {
		h.release(r.Context(), userID, key)
		h.Fail(w, err, "record payment", "user_id", userID, "order_id", orderID)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Complete(r.Context(), idempotencyScope, userID, key, res.Payment.ID); err != nil {
			h.Logger.Error("failed to record idempotency key", "error", err, "payment_id", res.Payment.ID)
		}
	}

	message := "Payment recorded. Remaining balance " + res.Order.Remaining.String()
	if res.Settled {
		message = "Payment recorded. The order is fully paid"
	}
	h.JSON(w, http.StatusCreated, payResponse{
		Message: httpx.Message{Message: message, Severity: httpx.SeveritySuccess},
		Result:  res,
	})
}

func (h *Handler) HandleBills(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	bills, err := h.billing.Bills(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "list bills", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, bills)
}

func (h *Handler) release(ctx context.Context, userID, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Release(ctx, idempotencyScope, userID, key); err != nil {
		h.Logger.Error("failed to release idempotency key", "error", err, "user_id", userID)
	}
}
