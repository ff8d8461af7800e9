package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"go-social/internal/hub"
	"go-social/internal/user"

	"github.com/stretchr/testify/require"
)

// fixture wires a router over in-memory stores and a running registry.
type fixture struct {
	dir      *user.MemoryDirectory
	store    *MemoryStore
	registry *hub.Registry
	rooms    *Rooms
	router   *Router
	users    map[string]*user.User
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:   user.NewMemoryDirectory(),
		store: NewMemoryStore(),
		users: map[string]*user.User{},
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.registry = hub.NewRegistry(discardLogger())
	done := make(chan struct{})
	go func() {
		_ = f.registry.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	for _, u := range []user.User{
		{Username: "alice", FirstName: "Alice", LastName: "Liddell", Gender: "F"},
		{Username: "bob", FirstName: "Bob", LastName: "Builder", Gender: "M"},
		{Username: "carol", FirstName: "Carol", Gender: "F"},
	} {
		created, err := f.dir.CreateUser(ctx, &u)
		require.NoError(t, err)
		f.users[created.Username] = created
	}

	f.rooms = NewRooms(f.store)
	f.router = NewRouter(f.rooms, f.store, f.dir, f.registry, discardLogger(), Options{})
	return f
}

func (f *fixture) identity(name string) user.Identity {
	u := f.users[name]
	return user.Identity{UserID: u.ID, Username: u.Username}
}

func (f *fixture) attach(t *testing.T, name string) *hub.Conn {
	t.Helper()
	c, err := f.registry.Attach(context.Background(), f.identity(name))
	require.NoError(t, err)
	return c
}

// open attaches a chat connection for viewer talking to friend.
func (f *fixture) open(t *testing.T, viewer, friend string) (*Session, *hub.Conn) {
	t.Helper()
	c := f.attach(t, viewer)
	s, err := f.router.Open(context.Background(), c, friend)
	require.NoError(t, err)
	return s, c
}

func recvJSON(t *testing.T, c *hub.Conn) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		require.True(t, ok, "connection closed")
		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func assertSilent(t *testing.T, c *hub.Conn) {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		if ok {
			t.Fatalf("unexpected delivery %s", data)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func send(t *testing.T, s *Session, payload map[string]any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	s.Handle(context.Background(), data)
}
