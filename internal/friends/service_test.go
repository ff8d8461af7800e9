package friends

import (
	"context"
	"sync"
	"testing"

	"go-social/internal/domain"
	"go-social/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir   *user.MemoryDirectory
	svc   *Service
	users map[string]int64
}

func newFixture(t *testing.T, store Store) *fixture {
	t.Helper()
	f := &fixture{dir: user.NewMemoryDirectory(), users: map[string]int64{}}
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := f.dir.CreateUser(context.Background(), &user.User{Username: name, FirstName: name})
		require.NoError(t, err)
		f.users[name] = u.ID
	}
	f.svc = NewService(store, f.dir)
	return f
}

func TestAcceptMakesSymmetricFriendship(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	_, notices, err := f.svc.SendRequest(ctx, alice, bob, "hi")
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, bob, notices[0].RecipientID)
	ev := notices[0].Payload.(RequestEvent)
	assert.Equal(t, "new_friend_request", ev.Command)
	assert.Equal(t, "alice", ev.Notification.From.Username)

	notices, err = f.svc.Accept(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, alice, notices[0].RecipientID)
	assert.Equal(t, "friend_request_accepted", notices[0].Payload.(RequestEvent).Command)

	for _, p := range [][2]int64{{alice, bob}, {bob, alice}} {
		ok, err := f.svc.AreFriends(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}
	received, err := f.svc.Received(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, received)

	_, _, err = f.svc.SendRequest(ctx, alice, bob, "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyFriends)
	_, _, err = f.svc.SendRequest(ctx, bob, alice, "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyFriends)

	_, err = f.svc.Accept(ctx, alice, bob)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	list, err := f.svc.Friends(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)
}

func TestOneRequestPerPair(t *testing.T) {
	store := NewMemoryStore()
	f := newFixture(t, store)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	_, _, err := f.svc.SendRequest(ctx, alice, bob, "")
	require.NoError(t, err)
	_, _, err = f.svc.SendRequest(ctx, bob, alice, "")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	// A rejected row still blocks both directions.
	require.NoError(t, f.svc.Reject(ctx, alice, bob))
	_, _, err = f.svc.SendRequest(ctx, bob, alice, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	_, _, err = f.svc.SendRequest(ctx, alice, bob, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	_, err = store.GetRequest(ctx, bob, alice)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	_, err = f.svc.Cancel(ctx, alice, bob)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	// Cancelling a pending request frees the pair.
	carol := f.users["carol"]
	_, _, err = f.svc.SendRequest(ctx, alice, carol, "")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, alice, carol)
	require.NoError(t, err)
	_, _, err = f.svc.SendRequest(ctx, carol, alice, "")
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, carol, alice)
	require.NoError(t, err)
	for _, p := range [][2]int64{{alice, carol}, {carol, alice}} {
		_, err := store.GetRequest(ctx, p[0], p[1])
		assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	}
}

// gatedStore holds every CreateRequest until n of them are in flight.
type gatedStore struct {
	Store
	arrived sync.WaitGroup
}

func (g *gatedStore) CreateRequest(ctx context.Context, r *Request) (*Request, error) {
	g.arrived.Done()
	g.arrived.Wait()
	return g.Store.CreateRequest(ctx, r)
}

func TestReciprocalRequestsRaceToOneWinner(t *testing.T) {
	store := &gatedStore{Store: NewMemoryStore()}
	store.arrived.Add(2)
	f := newFixture(t, store)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, p := range [][2]int64{{alice, bob}, {bob, alice}} {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.SendRequest(ctx, p[0], p[1], "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	pending := 0
	for _, id := range []int64{alice, bob} {
		received, err := f.svc.Received(ctx, id)
		require.NoError(t, err)
		pending += len(received)
	}
	assert.Equal(t, 1, pending)
}

func TestSendRequestRejects(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	_, _, err := f.svc.SendRequest(ctx, alice, alice, "")
	assert.ErrorIs(t, err, domain.ErrInvalidPair)

	_, _, err = f.svc.SendRequest(ctx, alice, bob, "")
	require.NoError(t, err)
	_, _, err = f.svc.SendRequest(ctx, alice, bob, "")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestRejectIsSilentAndCancelNotifiesTarget(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	alice, bob, carol := f.users["alice"], f.users["bob"], f.users["carol"]

	_, _, err := f.svc.SendRequest(ctx, alice, bob, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Reject(ctx, alice, bob))
	assert.ErrorIs(t, f.svc.Reject(ctx, alice, bob), domain.ErrRequestNotFound)

	_, _, err = f.svc.SendRequest(ctx, alice, carol, "")
	require.NoError(t, err)
	notices, err := f.svc.Cancel(ctx, alice, carol)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, carol, notices[0].RecipientID)
	assert.Equal(t, "friend_request_canceled", notices[0].Payload.(RequestEvent).Command)

	_, err = f.svc.Cancel(ctx, alice, carol)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestCatchUpListsPendingReceived(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	alice, bob, carol := f.users["alice"], f.users["bob"], f.users["carol"]

	_, _, err := f.svc.SendRequest(ctx, bob, alice, "first")
	require.NoError(t, err)
	_, _, err = f.svc.SendRequest(ctx, carol, alice, "second")
	require.NoError(t, err)

	got, err := f.svc.CatchUp(ctx, alice)
	require.NoError(t, err)
	snap := got.(AllRequests)
	assert.Equal(t, "all_friend_requests", snap.Command)
	assert.Equal(t, 2, snap.UnreadNotifications)
	require.Len(t, snap.FriendRequests, 2)
	assert.Equal(t, "first", snap.FriendRequests[0].Message)
	assert.Equal(t, "second", snap.FriendRequests[1].Message)

	_, err = f.svc.MarkViewed(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.svc.Reject(ctx, carol, alice))

	got, err = f.svc.CatchUp(ctx, alice)
	require.NoError(t, err)
	snap = got.(AllRequests)
	assert.Zero(t, snap.UnreadNotifications)
	require.Len(t, snap.FriendRequests, 1)
	assert.Equal(t, StatusViewed, snap.FriendRequests[0].Status)
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	assert.ErrorIs(t, f.svc.RemoveFriend(ctx, alice, bob), domain.ErrNotFriends)

	_, _, err := f.svc.SendRequest(ctx, alice, bob, "")
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveFriend(ctx, bob, alice))

	ok, err := f.svc.AreFriends(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, ok)
}
