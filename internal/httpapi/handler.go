// Package httpapi exposes the service over HTTP: registration and login,
// logout, group management, message history and the websocket chat
// transport.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/banterhq/banter/internal/auth"
	"github.com/banterhq/banter/internal/ratelimit"
	"github.com/banterhq/banter/internal/storage"
)

// messageHistoryLimit caps how many messages one history request returns.
const messageHistoryLimit = 100

// defaultNewLocationThresholdKM is the distance past which a login is
// reported as coming from a new location.
const defaultNewLocationThresholdKM = 100

// Handler bundles the dependencies shared by all HTTP handlers.
type Handler struct {
	store    storage.Store
	registry *auth.Registry
	limiter  *ratelimit.Limiter
	geo      *auth.GeoIP
	hub      *Hub
	logger   *slog.Logger

	// NewLocationThresholdKM tunes login new-location alerts.
	NewLocationThresholdKM float64
}

// New creates the handler set. limiter and geo may be nil, which disables
// login throttling and location capture respectively.
func New(store storage.Store, registry *auth.Registry, limiter *ratelimit.Limiter, geo *auth.GeoIP, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		registry: registry,
		limiter:  limiter,
		geo:      geo,
		hub:      NewHub(logger.With("component", "chat")),
		logger:   logger,

		NewLocationThresholdKM: defaultNewLocationThresholdKM,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// identity returns the authenticated identity or answers 401. The auth
// middleware guarantees it is present on protected routes; the check
// guards against wiring mistakes.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

// groupID parses the {id} path segment.
func groupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return 0, false
	}
	return id, true
}
