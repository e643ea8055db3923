package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/banterhq/banter/internal/storage"
)

type postMessageRequest struct {
	Content string `json:"content"`
}

type postMessageResponse struct {
	MessageID int64 `json:"message_id"`
}

// ListMessages returns the oldest 100 messages of a group the caller can
// read.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	gid, ok := groupID(w, r)
	if !ok {
		return
	}
	if !h.requireRead(w, r, id.UserID, gid) {
		return
	}

	messages, err := h.store.Messages(r.Context(), gid, messageHistoryLimit, 0)
	if err != nil {
		h.logger.Error("message listing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if messages == nil {
		messages = []storage.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// PostMessage stores a message in a group the caller can write to and
// fans it out to the group's connected websocket clients.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	gid, ok := groupID(w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	perms, err := h.store.Permissions(r.Context(), id.UserID, gid)
	if err != nil {
		h.logger.Error("permission lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !perms.Write {
		writeError(w, http.StatusForbidden,
			fmt.Sprintf("user %d does not have write permissions for group %d", id.UserID, gid))
		return
	}

	msgID, err := h.store.InsertMessage(r.Context(), gid, id.UserID, req.Content)
	if err != nil {
		h.logger.Error("message insert failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(chatMessage{
		ID:           msgID,
		GroupID:      gid,
		SenderUserID: id.UserID,
		Content:      req.Content,
		SentAt:       time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, postMessageResponse{MessageID: msgID})
}
