package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/banterhq/banter/internal/auth"
	"github.com/banterhq/banter/internal/password"
	"github.com/banterhq/banter/internal/ratelimit"
	"github.com/banterhq/banter/internal/storage"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authResponse is the body returned by register and login.
type authResponse struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// Register creates an account and issues its first session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		h.logger.Error("password hashing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id, err := h.store.CreateUser(r.Context(), storage.NewUser{
		Username:     req.Username,
		DisplayName:  req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrDuplicateUser) {
		writeError(w, http.StatusConflict, "found user with that email or username")
		return
	}
	if err != nil {
		h.logger.Error("user creation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token := h.registry.Issue(id, auth.CaptureMeta(r, h.geo))
	h.logger.Info("user registered", slog.Int64("user_id", id))
	writeJSON(w, http.StatusOK, authResponse{UserID: id, Token: token})
}

// Login verifies credentials and issues a session. Unknown usernames and
// wrong passwords get the same response, so the endpoint cannot be used
// to enumerate accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta := auth.CaptureMeta(r, h.geo)
	ip := meta.Device.IP

	if err := h.limiter.Allow(r.Context(), req.Username, ip); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		// throttle backend trouble must not lock users out
		h.logger.Error("rate limiter unavailable", slog.Any("error", err))
	}

	user, err := h.store.UserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("user lookup failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.failedLogin(r, req.Username, ip)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := password.Verify(req.Password, user.PasswordHash); err != nil {
		h.failedLogin(r, req.Username, ip)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.limiter.Reset(r.Context(), req.Username, ip); err != nil {
		h.logger.Error("rate limiter reset failed", slog.Any("error", err))
	}

	if prev, ok := h.registry.SessionForUser(user.ID); ok {
		if auth.NewLocation(prev.Location, meta.Location, h.NewLocationThresholdKM) {
			h.logger.Warn("login from new location",
				slog.Int64("user_id", user.ID),
				slog.String("city", meta.Location.City),
				slog.String("country", meta.Location.Country),
				slog.String("previous_city", prev.Location.City),
				slog.String("previous_country", prev.Location.Country))
		}
	}

	token := h.registry.Issue(user.ID, meta)
	h.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("device", meta.Device.DeviceType))
	writeJSON(w, http.StatusOK, authResponse{UserID: user.ID, Token: token})
}

func (h *Handler) failedLogin(r *http.Request, username, ip string) {
	if err := h.limiter.RecordFailure(r.Context(), username, ip); err != nil {
		h.logger.Error("rate limiter update failed", slog.Any("error", err))
	}
}

// Logout invalidates the session that authenticated this request.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	userID, err := h.registry.Invalidate(id.Token)
	if err != nil {
		// the session vanished between middleware and here (sweep or a
		// concurrent logout); the caller is logged out either way
		writeError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	h.logger.Info("user logged out", slog.Int64("user_id", userID))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("logged out user %d", userID),
	})
}
