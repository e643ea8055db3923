package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// unexported, collision-proof context key
type identityKeyType struct{}

var identityKey = identityKeyType{}

// IdentityFromContext returns the identity RequireAuth attached to the
// request context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Middleware guards protected route groups. A request either passes
// authentication and is forwarded unchanged with its identity in the
// context, or is answered with a 401 and never reaches the wrapped
// handler.
type Middleware struct {
	registry *Registry
	logger   *slog.Logger
}

// NewMiddleware creates a Middleware backed by the given registry.
func NewMiddleware(reg *Registry, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{registry: reg, logger: logger}
}

// RequireAuth wraps next with request authentication.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ExtractIdentity(r, m.registry)
		if err != nil {
			m.logger.Debug("request rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("reason", rejectMessage(err)))
			writeUnauthorized(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejectMessage maps a rejection to its short client-facing message. Only
// three categories are distinguishable; anything unexpected collapses
// into the generic one.
func rejectMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingUserID):
		return "missing or invalid user id"
	case errors.Is(err, ErrMissingToken):
		return "missing token"
	default:
		return "unauthorized"
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": rejectMessage(err)})
}
