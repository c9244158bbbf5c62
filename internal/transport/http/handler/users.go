package handler

import (
	"net/http"
	"strconv"

	"github.com/go-account-api/internal/application/user"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/middleware"
	"github.com/google/uuid"
)

type UserHandler struct {
	users user.Service
}

func NewUserHandler(users user.Service) *UserHandler {
	return &UserHandler{users: users}
}

// Register creates an inactive account and queues the activation email.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID, err := h.users.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": userID.String()})
}

// Activate flips the account active when the emailed code matches.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req domain.ActivateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, domain.NewInvalidInput("user_id", "must be a uuid"))
		return
	}
	if err := h.users.Activate(r.Context(), userID, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "account activated"})
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	u, err := h.users.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	var req domain.UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.users.UpdateProfile(r.Context(), claims.UserID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "profile updated"})
}

type listUsersResponse struct {
	Data    []domain.User `json:"data"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

// List is admin-only; the router gates it with RequireRole.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	users, total, err := h.users.List(r.Context(), page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, listUsersResponse{Data: users, Total: total, Page: page, PerPage: perPage})
}
