package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// heartbeatInterval is how often a ping is sent to each client.
	heartbeatInterval = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 3 * heartbeatInterval

	writeWait      = 10 * time.Second
	maxMessageSize = 8 << 10
	sendQueueSize  = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// chatMessage is the wire format for messages pushed over the chat
// socket.
type chatMessage struct {
	ID           int64     `json:"id"`
	GroupID      int64     `json:"group_id"`
	SenderUserID int64     `json:"sender_user_id"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sent_at"`
}

// inboundMessage is what clients send over the socket.
type inboundMessage struct {
	Content string `json:"content"`
}

// Hub fans chat messages out to the websocket clients attached to each
// group. It has its own lock and never touches the session registry.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[int64]map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		rooms:  make(map[int64]map[*wsClient]struct{}),
	}
}

// Broadcast queues the message for every client attached to its group.
// Clients whose send queue is full are dropped rather than allowed to
// stall the rest of the room.
func (hub *Hub) Broadcast(m chatMessage) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for c := range hub.rooms[m.GroupID] {
		select {
		case c.send <- m:
		default:
			hub.removeLocked(c)
			close(c.send)
			hub.logger.Warn("dropped slow chat client",
				slog.String("session", c.id.String()),
				slog.Int64("group_id", c.groupID))
		}
	}
}

func (hub *Hub) add(c *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.rooms[c.groupID] == nil {
		hub.rooms[c.groupID] = make(map[*wsClient]struct{})
	}
	hub.rooms[c.groupID][c] = struct{}{}
}

func (hub *Hub) remove(c *wsClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.removeLocked(c)
}

func (hub *Hub) removeLocked(c *wsClient) {
	if room, ok := hub.rooms[c.groupID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(hub.rooms, c.groupID)
		}
	}
}

type wsClient struct {
	id      uuid.UUID
	userID  int64
	groupID int64
	conn    *websocket.Conn
	send    chan chatMessage
}

// ChatSocket upgrades the request to a websocket attached to the group's
// chat room. Messages received on the socket are persisted and broadcast;
// unresponsive peers are dropped by the heartbeat.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
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

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &wsClient{
		id:      uuid.New(),
		userID:  id.UserID,
		groupID: gid,
		conn:    conn,
		send:    make(chan chatMessage, sendQueueSize),
	}
	h.hub.add(c)
	h.logger.Info("chat client connected",
		slog.String("session", c.id.String()),
		slog.Int64("user_id", c.userID),
		slog.Int64("group_id", c.groupID))

	go c.writePump()
	h.readPump(c)
}

// readPump consumes inbound messages until the connection dies. Runs on
// the request goroutine, but the request context is gone once the
// connection is hijacked, so store calls use a fresh one.
func (h *Handler) readPump(c *wsClient) {
	ctx := context.Background()
	defer func() {
		h.hub.remove(c)
		c.conn.Close()
		h.logger.Info("chat client disconnected",
			slog.String("session", c.id.String()),
			slog.Int64("user_id", c.userID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in inboundMessage
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", slog.Any("error", err))
			}
			return
		}
		if in.Content == "" {
			continue
		}

		perms, err := h.store.Permissions(ctx, c.userID, c.groupID)
		if err != nil || !perms.Write {
			continue
		}

		msgID, err := h.store.InsertMessage(ctx, c.groupID, c.userID, in.Content)
		if err != nil {
			h.logger.Error("chat message insert failed", slog.Any("error", err))
			continue
		}

		h.hub.Broadcast(chatMessage{
			ID:           msgID,
			GroupID:      c.groupID,
			SenderUserID: c.userID,
			Content:      in.Content,
			SentAt:       time.Now().UTC(),
		})
	}
}

// writePump pushes queued messages and heartbeat pings to the peer.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub dropped this client
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
