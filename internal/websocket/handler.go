package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/freshmate/internal/auth"
)

// HandleWebSocket upgrades a logged-in request and streams the owner's pass
// results until the connection closes. It must run behind the session guard.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := auth.Owner(r.Context())
		if owner == "" {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, owner).Run(r.Context())
	}
}
