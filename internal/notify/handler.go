package notify

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/sipasera/internal/httpx"
)

// Handler is the notifier service's HTTP face.
type Handler struct {
	httpx.Responder
	notifier Notifier
}

func NewHandler(notifier Notifier, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		notifier:  notifier,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if !h.Decode(w, r, &msg) {
		return
	}

	if strings.TrimSpace(msg.UserID) == "" || strings.TrimSpace(msg.Text) == "" {
		h.Error(w, http.StatusBadRequest, "user_id and text are required")
		return
	}
	if msg.Severity == "" {
		msg.Severity = httpx.SeverityInfo
	}

	if err := h.notifier.Notify(r.Context(), msg); err != nil {
		h.Fail(w, err, "send notification", "user_id", msg.UserID)
		return
	}

	h.JSON(w, http.StatusOK, sendResponse{Status: "sent"})
}
