package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/banterhq/banter/internal/storage"
)

type createGroupRequest struct {
	Name          string            `json:"group_name"`
	ParentGroupID *int64            `json:"parent_group_id"`
	Type          storage.GroupType `json:"group_type"`
}

type createGroupResponse struct {
	GroupID int64 `json:"group_id"`
}

type groupView struct {
	storage.Group
	storage.Permissions
}

// ListGroups returns the groups the caller can read.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	memberships, err := h.store.GroupsForUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("group listing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]groupView, 0, len(memberships))
	for _, m := range memberships {
		if m.Read {
			views = append(views, groupView{Group: m.Group, Permissions: m.Permissions})
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateGroup creates a group and grants the caller its creator
// permissions.
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || !storage.ValidGroupType(req.Type) {
		writeError(w, http.StatusBadRequest, "group_name and a valid group_type are required")
		return
	}

	groupID, err := h.store.CreateGroup(r.Context(), storage.NewGroup{
		Name:          req.Name,
		ParentGroupID: req.ParentGroupID,
		Type:          req.Type,
	}, id.UserID)
	if err != nil {
		h.logger.Error("group creation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("group created",
		slog.Int64("group_id", groupID),
		slog.Int64("created_by", id.UserID),
		slog.String("type", string(req.Type)))
	writeJSON(w, http.StatusOK, createGroupResponse{GroupID: groupID})
}

// GroupMembers returns the member list of a group the caller can read.
func (h *Handler) GroupMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.store.GroupMembers(r.Context(), gid)
	if err != nil {
		h.logger.Error("member listing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// requireRead answers 403 and returns false when the user lacks the read
// bit for the group.
func (h *Handler) requireRead(w http.ResponseWriter, r *http.Request, userID, groupID int64) bool {
	perms, err := h.store.Permissions(r.Context(), userID, groupID)
	if err != nil {
		h.logger.Error("permission lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if !perms.Read {
		writeError(w, http.StatusForbidden, "missing read permission for group")
		return false
	}
	return true
}
