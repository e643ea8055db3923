package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banterhq/banter/internal/auth"
)

func dialChat(t *testing.T, ts *testServer, userID int64, token string, groupID int64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") +
		fmt.Sprintf("/api/groups/%d/ws", groupID)
	header := http.Header{}
	header.Set(auth.UserIDHeader, fmt.Sprintf("%d", userID))
	header.Set(auth.AuthorizationHeader, token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatSocketReceivesPostedMessages(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	_, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, userID, token)
	gid := int64(body["group_id"].(float64))

	conn := dialChat(t, ts, userID, token, gid)

	res, _ := ts.do(t, http.MethodPut, fmt.Sprintf("/api/groups/%d/messages", gid),
		map[string]string{"content": "hello over http"}, userID, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("post message: expected 200, got %d", res.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got chatMessage
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("failed to read the broadcast message: %v", err)
	}
	if got.Content != "hello over http" || got.GroupID != gid || got.SenderUserID != userID {
		t.Errorf("unexpected message: %+v", got)
	}
}

func TestChatSocketRelaysBetweenClients(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	_, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, userID, token)
	gid := int64(body["group_id"].(float64))

	sender := dialChat(t, ts, userID, token, gid)
	receiver := dialChat(t, ts, userID, token, gid)

	if err := sender.WriteJSON(map[string]string{"content": "hello over ws"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}

	receiver.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got chatMessage
	if err := receiver.ReadJSON(&got); err != nil {
		t.Fatalf("failed to receive the relayed message: %v", err)
	}
	if got.Content != "hello over ws" || got.SenderUserID != userID {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.ID == 0 {
		t.Error("relayed message was not persisted before broadcast")
	}

	// the message is in the history too
	res, _ := ts.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/messages", gid), nil, userID, token)
	if res.StatusCode != http.StatusOK {
		t.Errorf("history after ws send: expected 200, got %d", res.StatusCode)
	}
}

func TestChatSocketRejectsNonMembers(t *testing.T) {
	ts := newTestServer(t)
	aliceID, aliceToken := ts.register(t, "alice")
	bobID, bobToken := ts.register(t, "bob")

	_, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, aliceID, aliceToken)
	gid := int64(body["group_id"].(float64))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") +
		fmt.Sprintf("/api/groups/%d/ws", gid)
	header := http.Header{}
	header.Set(auth.UserIDHeader, fmt.Sprintf("%d", bobID))
	header.Set(auth.AuthorizationHeader, bobToken)

	_, res, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected the dial to be refused for a non-member")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %+v", res)
	}
}
