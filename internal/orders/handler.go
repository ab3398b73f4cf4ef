package orders

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Handler struct {
	httpx.Responder
	ledger *Ledger
	users  store.UserStore
}

func NewHandler(ledger *Ledger, users store.UserStore, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		ledger:    ledger,
		users:     users,
	}
}

type orderDetail struct {
	domain.Order
	Payments []domain.Payment `json:"payments"`
}

// HandleList lists the caller's orders. Admins see every order, optionally
// narrowed with ?owner=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.OrderFilter{
		OwnerID: userID,
		Method:  domain.PaymentMethod(q.Get("method")),
		Status:  domain.OrderStatus(q.Get("status")),
	}

	admin, err := h.isAdmin(r, userID)
	if err != nil {
		h.Fail(w, err, "get user", "user_id", userID)
		return
	}
	if admin {
		filter.OwnerID = q.Get("owner")
	}

	orders, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		h.Fail(w, err, "list orders", "user_id", userID)
		return
	}

	h.Logger.Info("orders listed", "user_id", userID, "count", len(orders))
	h.JSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	orderID := r.PathValue("id")
	order, err := h.ledger.Get(r.Context(), orderID)
	if err != nil {
		h.Fail(w, err, "get order", "order_id", orderID)
		return
	}

	if order != nil && order.OwnerID != userID {
		admin, err := h.isAdmin(r, userID)
		if err != nil {
			h.Fail(w, err, "get user", "user_id", userID)
			return
		}
		if !admin {
			order = nil
		}
	}
	if order == nil {
		h.Error(w, http.StatusNotFound, "order not found")
		return
	}

	payments, err := h.ledger.Payments(r.Context(), order.ID)
	if err != nil {
		h.Fail(w, err, "list payments", "order_id", order.ID)
		return
	}

	h.JSON(w, http.StatusOK, orderDetail{Order: *order, Payments: payments})
}

func (h *Handler) isAdmin(r *http.Request, userID string) (bool, error) {
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}
