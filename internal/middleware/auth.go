package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/freshmate/internal/auth"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "freshmate_session"

// RequireSession resolves the session cookie and stores the session in the
// request context. Requests without a valid session get a 401 JSON error.
func RequireSession(sessions *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, ok := sessions.Get(cookie.Value)
			if !ok {
				unauthorized(w)
				return
			}

			ctx := auth.WithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "not logged in"})
}
