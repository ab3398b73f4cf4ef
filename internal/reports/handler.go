package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/store"
)

const dateLayout = "2006-01-02"

type Handler struct {
	httpx.Responder
	reports *Service
}

func NewHandler(reports *Service, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		reports:   reports,
	}
}

type expenseRequest struct {
	Category    domain.ExpenseCategory `json:"category"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
}

type expenseResponse struct {
	httpx.Message
	Entry *domain.ReportEntry `json:"entry"`
}

func (h *Handler) HandleRecordExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if !h.Decode(w, r, &req) {
		return
	}

	amount, err := domain.MoneyFromDecimal(req.Amount)
	if err != nil {
		h.Fail(w, err, "parse amount")
		return
	}

	entry, err := h.reports.RecordExpense(r.Context(), userID, Expense{
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
	})
	if err != nil {
		h.Fail(w, err, "record expense", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusCreated, expenseResponse{
		Message: httpx.Message{Message: "Expense recorded", Severity: httpx.SeveritySuccess},
		Entry:   entry,
	})
}

// HandleSummary serves the financial report. from and to are inclusive
// calendar dates.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := store.ReportFilter{Type: domain.ReportType(q.Get("type"))}
	switch filter.Type {
	case "", domain.ReportIncome, domain.ReportExpense:
	default:
		h.Error(w, http.StatusBadRequest, "type must be income or expense")
		return
	}

	if v := q.Get("from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
			return
		}
		filter.To = to.AddDate(0, 0, 1)
	}

	sum, err := h.reports.Summary(r.Context(), userID, filter)
	if err != nil {
		h.Fail(w, err, "summarize reports", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, sum)
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	d, err := h.reports.Dashboard(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "build dashboard", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, d)
}
