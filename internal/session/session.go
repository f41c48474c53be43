package session

import (
	"context"

	"bookstore-core/internal/apperr"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Session identifies the acting user. It is passed explicitly into every
// store and orchestrator call.
type Session struct {
	UserID string
	Email  string
	Role   string
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Require returns the user id of a resolved session or ErrNotLoggedIn.
func Require(s *Session) (string, error) {
	if s == nil || s.UserID == "" {
		return "", apperr.ErrNotLoggedIn
	}
	return s.UserID, nil
}

type ctxKey string

const sessionKey ctxKey = "session"

// WithSession stores the resolved session on the request context (called by middleware).
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}
