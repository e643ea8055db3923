package httpapi

import (
	"net/http"

	"github.com/banterhq/banter/internal/auth"
)

// Routes builds the service's route table. Everything under /api/ goes
// through the session middleware; register and login do not, logout does
// because it needs the caller's token.
func (h *Handler) Routes(mw *auth.Middleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.Handle("POST /auth/logout", mw.RequireAuth(http.HandlerFunc(h.Logout)))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/groups", h.ListGroups)
	api.HandleFunc("POST /api/groups", h.CreateGroup)
	api.HandleFunc("GET /api/groups/{id}/members", h.GroupMembers)
	api.HandleFunc("GET /api/groups/{id}/messages", h.ListMessages)
	api.HandleFunc("PUT /api/groups/{id}/messages", h.PostMessage)
	api.HandleFunc("GET /api/groups/{id}/ws", h.ChatSocket)
	mux.Handle("/api/", mw.RequireAuth(api))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
