package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-social/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer routes chat endpoints with the caller named by X-User.
func newServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	h := NewHandler(f.router, f.registry, func(r *http.Request) user.Identity {
		if u, ok := f.users[r.Header.Get("X-User")]; ok {
			return user.Identity{UserID: u.ID, Username: u.Username}
		}
		return user.Identity{}
	})
	r := chi.NewRouter()
	r.Get("/ws/chat/{friend}", h.ServeWs)
	r.Post("/api/conversations", h.StartConversation)
	r.Get("/api/messages", h.GetChatHistory)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, as, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if as != "" {
		req.Header.Set("X-User", as)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStartConversationAndHistory(t *testing.T) {
	f := newFixture(t)
	srv := newServer(t, f)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversations", "alice", `{"friend":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started startConversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, "bob", started.Friend)
	assert.NotEmpty(t, started.RoomID)

	s, _ := f.open(t, "bob", "alice")
	assert.Equal(t, started.RoomID, s.Room().ID)
	send(t, s, map[string]any{"command": "new_message", "from": "bob", "friend": "alice", "message": "hey"})

	resp = do(t, http.MethodGet, srv.URL+"/api/messages?friend=bob", "alice", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history AllMessages
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "bob", history.Messages[0].Author)
	assert.Equal(t, "alice", history.Messages[0].Friend)
	assert.Equal(t, "hey", history.Messages[0].Content)
}

func TestHistoryLimitIsClamped(t *testing.T) {
	f := newFixture(t)
	srv := newServer(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	resp := do(t, http.MethodPost, srv.URL+"/api/conversations", "alice", `{"friend":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started startConversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	for i := 0; i < 120; i++ {
		_, err := f.store.InsertMessage(ctx, &Message{
			RoomID:      started.RoomID,
			AuthorID:    f.users["alice"].ID,
			RecipientID: f.users["bob"].ID,
			Content:     fmt.Sprintf("msg %d", i),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		limit string
		want  int
	}{
		{"", 20},
		{"5", 5},
		{"500", 100},
		{"-1", 20},
	}
	for _, tt := range tests {
		t.Run("limit="+tt.limit, func(t *testing.T) {
			resp := do(t, http.MethodGet, srv.URL+"/api/messages?friend=bob&limit="+tt.limit, "alice", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var history AllMessages
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
			assert.Len(t, history.Messages, tt.want)
		})
	}
}

func TestChatHandlerErrors(t *testing.T) {
	f := newFixture(t)
	srv := newServer(t, f)

	tests := []struct {
		name   string
		method string
		path   string
		as     string
		body   string
		want   int
	}{
		{"anonymous start", http.MethodPost, "/api/conversations", "", `{"friend":"bob"}`, http.StatusUnauthorized},
		{"missing friend", http.MethodPost, "/api/conversations", "alice", `{}`, http.StatusBadRequest},
		{"unknown friend", http.MethodPost, "/api/conversations", "alice", `{"friend":"zed"}`, http.StatusNotFound},
		{"self", http.MethodPost, "/api/conversations", "alice", `{"friend":"alice"}`, http.StatusBadRequest},
		{"anonymous history", http.MethodGet, "/api/messages?friend=bob", "", "", http.StatusUnauthorized},
		{"anonymous socket", http.MethodGet, "/ws/chat/bob", "", "", http.StatusUnauthorized},
		{"socket unknown friend", http.MethodGet, "/ws/chat/zed", "alice", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.as, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestChatOverWebsocket(t *testing.T) {
	f := newFixture(t)
	srv := newServer(t, f)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	dial := func(as, friend string) *websocket.Conn {
		ws, resp, err := websocket.DefaultDialer.Dial(base+"/ws/chat/"+friend, http.Header{"X-User": {as}})
		require.NoError(t, err)
		resp.Body.Close()
		t.Cleanup(func() { ws.Close() })
		return ws
	}
	read := func(ws *websocket.Conn) map[string]any {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		var out map[string]any
		require.NoError(t, ws.ReadJSON(&out))
		return out
	}

	alice := dial("alice", "bob")
	bob := dial("bob", "alice")

	require.NoError(t, alice.WriteJSON(map[string]any{
		"command": "new_message", "from": "alice", "friend": "bob", "message": "hello bob",
	}))

	for _, ws := range []*websocket.Conn{alice, bob} {
		got := read(ws)
		assert.Equal(t, "new_message", got["command"])
		assert.Equal(t, "alice", got["author"])
		assert.Equal(t, "hello bob", got["content"])
	}

	require.NoError(t, bob.WriteJSON(map[string]any{"command": "fetch_messages", "author": "bob", "friend": "alice"}))
	got := read(bob)
	assert.Equal(t, "all_messages", got["command"])
	assert.Len(t, got["messages"], 1)

	require.NoError(t, bob.WriteJSON(map[string]any{"command": "nope"}))
	got = read(bob)
	assert.Equal(t, "error", got["command"])
	assert.Equal(t, "unknown_command", got["code"])
}
