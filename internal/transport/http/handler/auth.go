package handler

import (
	"net/http"

	"github.com/go-account-api/internal/application/auth"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/transport/http/middleware"
)

type AuthHandler struct {
	auth auth.Service
}

func NewAuthHandler(authSvc auth.Service) *AuthHandler {
	return &AuthHandler{auth: authSvc}
}

// Login returns a token pair, or a two-factor prompt when the account has 2FA
// enabled; in that case the code arrives by email and no tokens are issued.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if out.TwoFactor {
		writeJSON(w, http.StatusOK, map[string]any{
			"two_factor": true,
			"message":    "a login code has been sent to your email",
		})
		return
	}
	writeJSON(w, http.StatusOK, out.Tokens)
}

func (h *AuthHandler) LoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req auth.TwoFactorLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tokens, err := h.auth.LoginTwoFactor(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	if err := h.auth.Logout(r.Context(), claims.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, domain.NewInvalidInput("refresh_token", "is required"))
		return
	}
	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword queues a reset-code email. Repeat requests inside the code's
// TTL return the same success response without sending another email.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeError(w, domain.NewInvalidInput("email", "is required"))
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "a reset code has been sent to your email"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password has been reset"})
}
