package credit

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/sipasera/internal/httpx"
)

type Handler struct {
	httpx.Responder
	ledger *Ledger
}

func NewHandler(ledger *Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		ledger:    ledger,
	}
}

// HandleSummary returns the caller's limit, used and available credit.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	summary, err := h.ledger.Summary(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "get credit summary", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, summary)
}
