package handler

import (
	"errors"
	"log"
	"net/http"

	"thriftmarket/internal/api"
	"thriftmarket/internal/models"
	"thriftmarket/internal/service"
)

type AuthHandler struct {
	logger      *log.Logger
	sessions    *service.SessionService
	cartService *service.CartService
}

func NewAuthHandler(logger *log.Logger, sessions *service.SessionService, cartService *service.CartService) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		sessions:    sessions,
		cartService: cartService,
	}
}

type sessionPayload struct {
	SessionID   string      `json:"session_id"`
	UserID      string      `json:"user_id"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Printf("Method not allowed for %s: %s", r.URL.Path, r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/auth/register":
		h.register(w, r)
	case "/auth/login":
		h.login(w, r)
	case "/auth/logout":
		h.logout(w, r)
	case "/auth/forgot-password":
		h.forgotPassword(w, r)
	case "/auth/reset-password":
		h.resetPassword(w, r)
	case "/auth/verify-email":
		h.verifyEmail(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "name, email, and password are required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Signup(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.established(w, r, session)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if creds.Email == "" || creds.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Login(r.Context(), creds)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	h.established(w, r, session)
}

// established answers a fresh session and restores any cart snapshot saved
// before the login redirect, keyed by the anonymous client ID.
func (h *AuthHandler) established(w http.ResponseWriter, r *http.Request, session *models.Session) {
	if clientID := r.Header.Get("X-Client-ID"); clientID != "" {
		if err := h.cartService.RestoreSnapshot(r.Context(), clientID); err != nil {
			h.logger.Printf("Warning: failed to restore pending cart for %s: %v", clientID, err)
		} else {
			h.cartService.Adopt(clientID, session.ID)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, sessionPayload{
		SessionID:   session.ID,
		UserID:      session.UserID,
		DisplayName: session.DisplayName,
		Role:        session.Role,
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.sessions.Logout(r.Context(), session.ID); err != nil {
		h.logger.Printf("Logout failed for session %s: %v", session.ID, err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	if err := h.sessions.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"message": "password reset email sent"})
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.NewPassword == "" {
		http.Error(w, "token and new_password are required", http.StatusBadRequest)
		return
	}
	if err := h.sessions.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"message": "password has been reset"})
}

func (h *AuthHandler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	resp, err := h.sessions.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, service.ErrAccountBlocked):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrVerificationFailed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Printf("Auth error: %v", err)
		http.Error(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}
