package users

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/sipasera/internal/httpx"
)

type Handler struct {
	httpx.Responder
	users *Service
}

func NewHandler(users *Service, logger *slog.Logger) *Handler {
	return &Handler{
		Responder: httpx.Responder{Logger: logger},
		users:     users,
	}
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type registerResponse struct {
	httpx.Message
	*Registration
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.Decode(w, r, &req) {
		return
	}

	reg, err := h.users.Register(r.Context(), req.Name, req.Email)
	if err != nil {
		h.Fail(w, err, "register user")
		return
	}

	h.JSON(w, http.StatusCreated, registerResponse{
		Message:      httpx.Message{Message: "Registration successful", Severity: httpx.SeveritySuccess},
		Registration: reg,
	})
}

// HandleMe returns the caller's profile.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.User(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.Fail(w, err, "get user", "user_id", userID)
		return
	}

	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, user)
}
