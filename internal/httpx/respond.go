package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/sipasera/internal/domain"
)

// UserHeader carries the caller's user id. It is set by the session layer in
// front of this service.
const UserHeader = "X-User-ID"

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is the user-visible outcome attached to every mutating response.
type Message struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

type errorResponse struct {
	Error string `json:"error"`
	Message
}

// Responder is embedded by handlers for JSON output.
type Responder struct {
	Logger *slog.Logger
}

func (h Responder) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}

func (h Responder) Error(w http.ResponseWriter, status int, message string) {
	severity := SeverityWarning
	if status >= http.StatusInternalServerError {
		severity = SeverityError
	}
	h.JSON(w, status, errorResponse{
		Error:   message,
		Message: Message{Message: message, Severity: severity},
	})
}

// Fail writes err as a response. Domain errors become 4xx with a readable
// message; anything else is logged as "failed to <op>" and hidden behind a
// 500.
func (h Responder) Fail(w http.ResponseWriter, err error, op string, args ...any) {
	status, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("failed to "+op, append([]any{"error", err}, args...)...)
	}
	h.Error(w, status, message)
}

// Decode reads a JSON body, rejecting unknown fields.
func (h Responder) Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// User returns the caller's id, writing a 401 when it is missing.
func (h Responder) User(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}

var statusMessages = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrInvalidAmount, http.StatusBadRequest, "amount must be a positive whole number of rupiah"},
	{domain.ErrInvalidMethod, http.StatusBadRequest, "unsupported payment method"},
	{domain.ErrEmptyCart, http.StatusBadRequest, "cart is empty"},
	{domain.ErrInvalidCategory, http.StatusBadRequest, "unknown expense category"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "name and a valid email are required"},
	{domain.ErrEmailTaken, http.StatusConflict, "email is already registered"},
	{domain.ErrNoCreditAccount, http.StatusUnprocessableEntity, "you do not have a paylater account yet"},
	{domain.ErrCreditNotEligible, http.StatusUnprocessableEntity, "your paylater limit has not been approved yet"},
	{domain.ErrInsufficientCredit, http.StatusUnprocessableEntity, "paylater limit is not sufficient for this order"},
	{domain.ErrOverpaymentRejected, http.StatusUnprocessableEntity, "payment exceeds the remaining balance"},
	{domain.ErrOutOfStock, http.StatusConflict, "some items are out of stock"},
	{domain.ErrInvalidState, http.StatusConflict, "the request conflicts with the current state"},
	{domain.ErrDuplicateRequest, http.StatusConflict, "this request is already being processed"},
	{domain.ErrNotFound, http.StatusNotFound, "not found"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func StatusFor(err error) (int, string) {
	for _, sm := range statusMessages {
		if errors.Is(err, sm.err) {
			return sm.status, sm.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}
