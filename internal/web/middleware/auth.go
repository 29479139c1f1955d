package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type contextKey string

const sessionContextKey contextKey = "session"

// unauthenticated writes the 401 error envelope used by the API.
func unauthenticated(w http.ResponseWriter, err error) {
	message := "authentication required"
	switch {
	case errors.Is(err, ErrTokenExpired):
		message = "session expired"
	case errors.Is(err, ErrInvalidToken):
		message = "invalid session token"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthenticated"})
}

// RequireAuth rejects requests without a valid identity token and stores
// the session in the request context.
func RequireAuth(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sm.Authenticate(r)
			if err != nil {
				unauthenticated(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), session)))
		})
	}
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
