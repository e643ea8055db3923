package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/banterhq/banter/internal/auth"
	"github.com/banterhq/banter/internal/storage"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := auth.NewRegistry(auth.Config{TTL: time.Minute})
	h := New(store, registry, nil, nil, nil)
	mw := auth.NewMiddleware(registry, nil)

	srv := httptest.NewServer(h.Routes(mw))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, userID int64, token string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set(auth.UserIDHeader, fmt.Sprintf("%d", userID))
		req.Header.Set(auth.AuthorizationHeader, token)
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	raw, _ := io.ReadAll(res.Body)
	res.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// list endpoints return arrays; callers decode those themselves
			decoded = nil
		}
	}
	return res, decoded
}

func (ts *testServer) register(t *testing.T, username string) (int64, string) {
	t.Helper()

	res, body := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter2hunter2",
	}, 0, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("register %s: expected 200, got %d (%v)", username, res.StatusCode, body)
	}

	userID := int64(body["user_id"].(float64))
	token := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: empty token", username)
	}
	return userID, token
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	ts := newTestServer(t)

	userID, token := ts.register(t, "alice")

	// a fresh login replaces the registration session
	res, body := ts.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "hunter2hunter2",
	}, 0, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%v)", res.StatusCode, body)
	}
	newToken := body["token"].(string)
	if newToken == token {
		t.Error("login returned the registration token")
	}

	// the replaced token no longer works
	res, _ = ts.do(t, http.MethodGet, "/api/groups", nil, userID, token)
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("old token: expected 401, got %d", res.StatusCode)
	}

	// the fresh one does
	res, _ = ts.do(t, http.MethodGet, "/api/groups", nil, userID, newToken)
	if res.StatusCode != http.StatusOK {
		t.Errorf("new token: expected 200, got %d", res.StatusCode)
	}

	// logout, then the token is dead
	res, body = ts.do(t, http.MethodPost, "/auth/logout", nil, userID, newToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d (%v)", res.StatusCode, body)
	}
	res, _ = ts.do(t, http.MethodGet, "/api/groups", nil, userID, newToken)
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("after logout: expected 401, got %d", res.StatusCode)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	res, _ := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
	}, 0, "")
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", res.StatusCode)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	res, _ := ts.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password",
	}, 0, "")
	if res.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for a duplicate username, got %d", res.StatusCode)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")

	for name, creds := range map[string]map[string]string{
		"wrong password":   {"username": "alice", "password": "wrong"},
		"unknown username": {"username": "nobody", "password": "whatever"},
	} {
		res, body := ts.do(t, http.MethodPost, "/auth/login", creds, 0, "")
		if res.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, res.StatusCode)
		}
		if body["error"] != "invalid credentials" {
			t.Errorf("%s: expected the generic message, got %v", name, body["error"])
		}
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	res, _ := ts.do(t, http.MethodGet, "/api/groups", nil, 0, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", res.StatusCode)
	}

	res, _ = ts.do(t, http.MethodGet, "/api/groups", nil, 1, "bogus-token")
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bogus token, got %d", res.StatusCode)
	}
}

func TestGroupLifecycle(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	res, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, userID, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create group: expected 200, got %d (%v)", res.StatusCode, body)
	}
	gid := int64(body["group_id"].(float64))

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/groups", nil)
	req.Header.Set(auth.UserIDHeader, fmt.Sprintf("%d", userID))
	req.Header.Set(auth.AuthorizationHeader, token)
	listRes, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("list groups failed: %v", err)
	}
	defer listRes.Body.Close()

	var groups []map[string]any
	if err := json.NewDecoder(listRes.Body).Decode(&groups); err != nil {
		t.Fatalf("failed to decode group list: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if int64(groups[0]["id"].(float64)) != gid || groups[0]["group_name"] != "general" {
		t.Errorf("unexpected group: %v", groups[0])
	}

	res, body = ts.do(t, http.MethodGet, fmt.Sprintf("/api/groups/%d/members", gid), nil, userID, token)
	if res.StatusCode != http.StatusOK {
		t.Errorf("members: expected 200, got %d (%v)", res.StatusCode, body)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	for name, req := range map[string]map[string]any{
		"missing name": {"group_type": "channel"},
		"bad type":     {"group_name": "general", "group_type": "cabal"},
	} {
		res, _ := ts.do(t, http.MethodPost, "/api/groups", req, userID, token)
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, res.StatusCode)
		}
	}
}

func TestMessagePermissions(t *testing.T) {
	ts := newTestServer(t)
	aliceID, aliceToken := ts.register(t, "alice")
	bobID, bobToken := ts.register(t, "bob")

	_, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, aliceID, aliceToken)
	gid := int64(body["group_id"].(float64))
	messagesPath := fmt.Sprintf("/api/groups/%d/messages", gid)

	// the creator can post and read
	res, body := ts.do(t, http.MethodPut, messagesPath, map[string]string{
		"content": "hello",
	}, aliceID, aliceToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("post message: expected 200, got %d (%v)", res.StatusCode, body)
	}
	if body["message_id"] == nil {
		t.Error("post message response has no message_id")
	}

	// bob is not a member: cannot post, cannot read
	res, _ = ts.do(t, http.MethodPut, messagesPath, map[string]string{
		"content": "intruding",
	}, bobID, bobToken)
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("outsider post: expected 403, got %d", res.StatusCode)
	}
	res, _ = ts.do(t, http.MethodGet, messagesPath, nil, bobID, bobToken)
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("outsider read: expected 403, got %d", res.StatusCode)
	}
}

func TestMessageHistory(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	_, body := ts.do(t, http.MethodPost, "/api/groups", map[string]any{
		"group_name": "general",
		"group_type": "channel",
	}, userID, token)
	gid := int64(body["group_id"].(float64))
	messagesPath := fmt.Sprintf("/api/groups/%d/messages", gid)

	for i := 0; i < 3; i++ {
		res, _ := ts.do(t, http.MethodPut, messagesPath, map[string]string{
			"content": fmt.Sprintf("message %d", i),
		}, userID, token)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("post %d: expected 200, got %d", i, res.StatusCode)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+messagesPath, nil)
	req.Header.Set(auth.UserIDHeader, fmt.Sprintf("%d", userID))
	req.Header.Set(auth.AuthorizationHeader, token)
	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("list messages failed: %v", err)
	}
	defer res.Body.Close()

	var messages []storage.Message
	if err := json.NewDecoder(res.Body).Decode(&messages); err != nil {
		t.Fatalf("failed to decode messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, m := range messages {
		if m.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("message %d out of order: %q", i, m.Content)
		}
	}
}

func TestInvalidGroupID(t *testing.T) {
	ts := newTestServer(t)
	userID, token := ts.register(t, "alice")

	res, _ := ts.do(t, http.MethodGet, "/api/groups/notanumber/messages", nil, userID, token)
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric group id, got %d", res.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	res, body := ts.do(t, http.MethodGet, "/health", nil, 0, "")
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}
