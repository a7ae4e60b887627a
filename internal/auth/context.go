package auth

import (
	"context"
	"time"
)

type contextKey struct{}

// Session is the identity of a logged-in user. Email doubles as the owner
// key for inventory items and as the notification recipient.
type Session struct {
	Token     string    `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Owner returns the owner key of the session in ctx, or "" when there is none.
func Owner(ctx context.Context) string {
	s, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return s.Email
}
