package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/freshmate/internal/auth"
	"github.com/dukerupert/freshmate/internal/handler"
	"github.com/dukerupert/freshmate/internal/inventory"
	"github.com/dukerupert/freshmate/internal/middleware"
	ws "github.com/dukerupert/freshmate/internal/websocket"
)

const (
	loginLimit  = 10
	loginPeriod = time.Minute
)

type Server struct {
	svc         *inventory.Service
	sessions    *auth.Manager
	hub         *ws.Hub
	authH       *handler.AuthHandler
	inventoryH  *handler.InventoryHandler
	rateLimiter *middleware.RateLimiter
	clientIP    func(*http.Request) string
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTrustProxyHeaders keys the login limit on CF-Connecting-IP and
// X-Forwarded-For instead of the connection address.
func WithTrustProxyHeaders(trust bool) Option {
	return func(s *Server) {
		s.clientIP = middleware.ClientIP(trust)
	}
}

// New wires the HTTP surface around svc. The hub should already be
// registered as a pass listener on svc so that passes reach open sockets.
func New(svc *inventory.Service, hub *ws.Hub, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		svc:         svc,
		sessions:    svc.Sessions(),
		hub:         hub,
		authH:       handler.NewAuthHandler(svc, logger.With("component", "auth")),
		inventoryH:  handler.NewInventoryHandler(svc, logger.With("component", "inventory")),
		rateLimiter: middleware.NewRateLimiter(),
		clientIP:    middleware.RemoteIP,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /logout", s.authH.Logout)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /api/session", s.authH.Session)
	protectedMux.HandleFunc("GET /api/items", s.inventoryH.List)
	protectedMux.HandleFunc("POST /api/items", s.inventoryH.Create)
	protectedMux.HandleFunc("DELETE /api/items/{name}", s.inventoryH.Delete)
	protectedMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	guard := middleware.RequireSession(s.sessions)
	outerMux.Handle("/api/", guard(middleware.TagOwner(protectedMux)))
	outerMux.Handle("/ws", guard(middleware.TagOwner(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"sockets":  s.hub.ClientCount(),
	})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, s.clientIP, loginLimit, loginPeriod)
	wrapped := rl(h)
	return wrapped.ServeHTTP
}

// Maintain drops expired sessions and rate-limit windows every interval
// until ctx is done. It never evaluates inventory.
func (s *Server) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions := s.sessions.Cleanup(handler.SessionTTL)
			windows := s.rateLimiter.Cleanup()
			if sessions > 0 || windows > 0 {
				s.logger.Debug("maintenance", "sessions_removed", sessions, "rate_windows_removed", windows)
			}
		}
	}
}
