package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "docqa/internal/errors"
	"docqa/internal/session"
)

type contextKey string

// SessionContextKey is the context key for storing the caller's session
const SessionContextKey contextKey = "session"

// SessionLookup resolves a bearer token to a live session.
type SessionLookup interface {
	Session(token string) (*session.Context, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware validates the Authorization header and adds the session to the
// request context. The bearer value is the token issued at login.
func Middleware(sessions SessionLookup, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				onError(w, r, apperrors.ErrMissingAuthHeader)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				onError(w, r, apperrors.ErrInvalidAuthHeader)
				return
			}

			sess, err := sessions.Session(parts[1])
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := WithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *session.Context) context.Context {
	return context.WithValue(ctx, SessionContextKey, sess)
}

// GetSessionFromContext extracts the authenticated session from the context
func GetSessionFromContext(ctx context.Context) *session.Context {
	sess, ok := ctx.Value(SessionContextKey).(*session.Context)
	if !ok {
		panic("session not found in context")
	}

	return sess
}
