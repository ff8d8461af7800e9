package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go-social/internal/domain"
	"go-social/internal/hub"
	"go-social/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runningRegistry(t *testing.T) *hub.Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	registry := hub.NewRegistry(discardLogger())
	done := make(chan struct{})
	go func() {
		_ = registry.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return registry
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

func TestConnectAnonymousGetsOnlyNotice(t *testing.T) {
	registry := runningRegistry(t)
	svc := NewService(NewMemoryStore(), 0)
	d := NewDispatcher(KindCommentLikes, registry, svc, discardLogger())
	ctx := context.Background()

	anon, err := registry.Attach(ctx, user.Identity{})
	require.NoError(t, err)
	require.NoError(t, d.Connect(ctx, anon))

	got := recvJSON(t, anon)
	assert.Equal(t, map[string]any{"type": "anonymous_user", "command": "anonymous_user"}, got)

	require.NoError(t, d.Broadcast(ctx, 0, map[string]string{"command": "leak"}))
	assertSilent(t, anon)

	stats, err := registry.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Groups)
}

func TestConnectQueuesCatchUpFirst(t *testing.T) {
	registry := runningRegistry(t)
	store := NewMemoryStore()
	svc := NewService(store, 0)
	d := NewDispatcher(KindCommentLikes, registry, svc, discardLogger())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _, err := svc.Create(ctx, 1, 2, "comment", "c")
		require.NoError(t, err)
	}
	_, _, err := svc.Create(ctx, 1, 2, "like", "l")
	require.NoError(t, err)

	c, err := registry.Attach(ctx, user.Identity{UserID: 1, Username: "alice"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Races the join; either way it must arrive after the snapshot.
		_, notice, err := svc.Create(ctx, 1, 2, "like", "live")
		if err == nil {
			_ = d.Broadcast(ctx, notice.RecipientID, notice.Payload)
		}
	}()
	require.NoError(t, d.Connect(ctx, c))
	wg.Wait()

	first := recvJSON(t, c)
	assert.Equal(t, "all_notifications", first["type"])
	assert.Equal(t, "notifications", first["command"])
	notes := first["notifications"].([]any)
	require.Len(t, notes, DefaultCatchUpLimit)
	for i, n := range notes {
		note := n.(map[string]any)
		assert.Equal(t, "comment", note["verb"])
		// Oldest of the four most recent comments first.
		assert.EqualValues(t, 3+i, note["id"])
	}

	select {
	case data := <-c.Outbound():
		var live map[string]any
		require.NoError(t, json.Unmarshal(data, &live))
		assert.Equal(t, "new_like_comment_notification", live["command"])
	case <-time.After(time.Second):
		// The live event landed before the join and is not a member delivery.
	}
}

func TestBroadcastAllReachesEachRecipient(t *testing.T) {
	registry := runningRegistry(t)
	d := NewDispatcher(KindFriendRequests, registry, catchUpFunc(func(context.Context, int64) (any, error) {
		return map[string]string{"command": "all_friend_requests"}, nil
	}), discardLogger())
	ctx := context.Background()

	conns := map[int64]*hub.Conn{}
	for _, id := range []int64{1, 2} {
		c, err := registry.Attach(ctx, user.Identity{UserID: id})
		require.NoError(t, err)
		require.NoError(t, d.Connect(ctx, c))
		assert.Equal(t, "all_friend_requests", recvJSON(t, c)["command"])
		conns[id] = c
	}

	require.NoError(t, d.BroadcastAll(ctx, []Notice{
		{RecipientID: 2, Payload: map[string]string{"command": "new_friend_request"}},
	}))
	assert.Equal(t, "new_friend_request", recvJSON(t, conns[2])["command"])
	assertSilent(t, conns[1])
}

type catchUpFunc func(ctx context.Context, id int64) (any, error)

func (f catchUpFunc) CatchUp(ctx context.Context, id int64) (any, error) { return f(ctx, id) }

func TestServiceCreateAndMarkRead(t *testing.T) {
	svc := NewService(NewMemoryStore(), 0)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, 1, 2, "share", "")
	assert.ErrorIs(t, err, domain.ErrInvalidVerb)
	_, _, err = svc.Create(ctx, 0, 2, "like", "")
	assert.ErrorIs(t, err, domain.ErrUnknownParticipant)

	first, notice, err := svc.Create(ctx, 1, 2, "like", "liked your post")
	require.NoError(t, err)
	assert.Equal(t, int64(1), notice.RecipientID)
	payload := notice.Payload.(NewNotification)
	assert.Equal(t, "notify", payload.Type)
	assert.Equal(t, "new_like_comment_notification", payload.Command)
	assert.Equal(t, 1, payload.UnreadNotifications)

	_, notice, err = svc.Create(ctx, 1, 3, "comment", "commented")
	require.NoError(t, err)
	assert.Equal(t, 2, notice.Payload.(NewNotification).UnreadNotifications)

	changed, err := svc.MarkRead(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	// Someone else's ids are ignored.
	changed, err = svc.MarkRead(ctx, 2, first.ID+1)
	require.NoError(t, err)
	assert.Zero(t, changed)

	unread, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	_, err = svc.MarkRead(ctx, 1)
	require.NoError(t, err)
	unread, err = svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, unread)

	list, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, VerbComment, list[0].Verb)
}

func TestCatchUpCountsAllUnread(t *testing.T) {
	svc := NewService(NewMemoryStore(), 2)
	ctx := context.Background()
	for _, verb := range []string{"comment", "like", "comment", "comment", "like"} {
		_, _, err := svc.Create(ctx, 7, 8, verb, verb)
		require.NoError(t, err)
	}

	got, err := svc.CatchUp(ctx, 7)
	require.NoError(t, err)
	snap := got.(AllNotifications)
	assert.Equal(t, 5, snap.UnreadNotifications)
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, int64(3), snap.Notifications[0].ID)
	assert.Equal(t, int64(4), snap.Notifications[1].ID)

	empty, err := svc.CatchUp(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty.(AllNotifications).Notifications)
}
