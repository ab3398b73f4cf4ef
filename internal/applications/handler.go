package applications

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/sipasera/internal/domain"
	"github.com/joao-fontenele/sipasera/internal/httpx"
	"github.com/joao-fontenele/sipasera/internal/store"
)

type Handler struct {
	httpx.Responder
	workflow *Workflow
	users    store.UserStore
}

func NewHandler(workflow *Workflow, users store.UserStore, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		workflow:  workflow,
		users:     users,
	}
}

type submitRequest struct {
	RequestedLimit decimal.Decimal `json:"requested_limit"`
	Reason         string          `json:"reason"`
}

type applicationResponse struct {
	httpx.Message
	Application *domain.CreditApplication `json:"application"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if !h.Decode(w, r, &req) {
		return
	}

	requested, err := domain.MoneyFromDecimal(req.RequestedLimit)
	if err != nil {
		h.Fail(w, err, "parse requested limit")
		return
	}

	app, err := h.workflow.Submit(r.Context(), userID, requested, req.Reason)
	if err != nil {
		h.Fail(w, err, "submit credit application", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusCreated, applicationResponse{
		Message:     httpx.Message{Message: "Credit application submitted. Please wait for admin review", Severity: httpx.SeveritySuccess},
		Application: app,
	})
}

type resolveRequest struct {
	Decision domain.ApplicationStatus `json:"decision"`
}

type resolveResponse struct {
	httpx.Message
	*Resolution
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !h.Decode(w, r, &req) {
		return
	}

	applicationID := r.PathValue("id")
	res, err := h.workflow.Resolve(r.Context(), userID, applicationID, req.Decision)
	if err != nil {
		h.Fail(w, err, "resolve credit application", "application_id", applicationID)
		return
	}

	message := "Credit application rejected"
	if res.Application.Status == domain.ApplicationApproved {
		message = "Credit application approved. New limit " + res.Credit.Limit.String()
	}
	h.JSON(w, http.StatusOK, resolveResponse{
		Message:    httpx.Message{Message: message, Severity: httpx.SeveritySuccess},
		Resolution: res,
	})
}

func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	applicationID := r.PathValue("id")
	app, err := h.workflow.Acknowledge(r.Context(), userID, applicationID)
	if err != nil {
		h.Fail(w, err, "acknowledge credit application", "application_id", applicationID)
		return
	}

	h.JSON(w, http.StatusOK, applicationResponse{
		Message:     httpx.Message{Message: "Notification dismissed", Severity: httpx.SeverityInfo},
		Application: app,
	})
}

// HandleNotices lists resolutions the caller has not dismissed yet.
func (h *Handler) HandleNotices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	apps, err := h.workflow.Notices(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "list notices", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, apps)
}

// HandleList serves the admin review queue, filtered by ?status=. Customers
// only see their own applications.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	filter := store.ApplicationFilter{
		OwnerID: userID,
		Status:  domain.ApplicationStatus(r.URL.Query().Get("status")),
	}
	switch filter.Status {
	case "", domain.ApplicationPending, domain.ApplicationApproved, domain.ApplicationRejected:
	default:
		h.Error(w, http.StatusBadRequest, "unknown application status")
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "get user", "user_id", userID)
		return
	}
	if user.IsAdmin() {
		filter.OwnerID = r.URL.Query().Get("owner")
	}

	apps, err := h.workflow.List(r.Context(), filter)
	if err != nil {
		h.Fail(w, err, "list credit applications", "user_id", userID)
		return
	}

	h.JSON(w, http.StatusOK, apps)
}
