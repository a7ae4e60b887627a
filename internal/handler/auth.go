package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/middleware"
)

// SessionTTL is how long the session cookie and server-side session live.
const SessionTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	svc    *inventory.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *inventory.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type loginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	passResponse
}

// Login accepts any name and well-formed email address. There is no password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required", "field": "name"})
		return
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a valid email is required", "field": "email"})
		return
	}

	sess, pass, err := h.svc.Login(r.Context(), req.Name, req.Email)
	if err != nil {
		if sess.Token != "" {
			h.svc.Logout(sess.Token)
		}
		writeServiceError(w, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(SessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Name:         sess.Name,
		Email:        sess.Email,
		passResponse: newPassResponse(pass, h.svc.Today(), h.svc.Window()),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		h.svc.Logout(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Session reports who is logged in.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
