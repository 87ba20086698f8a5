package friends_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedsync/internal/core"
	"feedsync/internal/events"
	"feedsync/internal/friends"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	requests []core.FriendRequest
	friends  []core.Profile
	err      error
}

func (f fakeAPI) FriendRequests(context.Context) ([]core.FriendRequest, error) {
	return f.requests, f.err
}

func (f fakeAPI) Friends(context.Context) ([]core.Profile, error) {
	return f.friends, nil
}

func request(id int64, from, to string) core.FriendRequest {
	return core.FriendRequest{
		ID:        id,
		From:      from,
		To:        to,
		Status:    core.FriendRequestPending,
		CreatedAt: epoch.Add(time.Duration(id) * time.Minute),
	}
}

func TestBook_Load(t *testing.T) {
	t.Parallel()

	answered := request(4, "dave", "me")
	answered.Status = core.FriendRequestRejected

	book := friends.NewBook("me", nil)
	err := book.Load(t.Context(), fakeAPI{
		requests: []core.FriendRequest{request(1, "me", "bob"), request(2, "carol", "me"), request(3, "me", "erin"), answered},
		friends:  []core.Profile{{Username: "zoe"}, {Username: "adam"}},
	})

	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, ids(book.Sent()))
	require.Equal(t, []int64{2}, ids(book.Received()))
	require.Equal(t, []string{"adam", "zoe"}, book.Friends())
}

func TestBook_LoadErrorKeepsState(t *testing.T) {
	t.Parallel()

	book := friends.NewBook("me", nil)
	require.NoError(t, book.Load(t.Context(), fakeAPI{friends: []core.Profile{{Username: "zoe"}}}))

	boom := errors.New("boom")
	require.ErrorIs(t, book.Load(t.Context(), fakeAPI{err: boom}), boom)
	require.True(t, book.IsFriend("zoe"))
}

func TestBook_FollowsEvents(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(nil)
	book := friends.NewBook("me", nil)
	unbind := book.Bind(bus)

	ctx := t.Context()
	events.Publish(ctx, bus, events.FriendRequestNew, request(1, "me", "bob"))
	events.Publish(ctx, bus, events.FriendRequestNew, request(2, "carol", "me"))
	events.Publish(ctx, bus, events.FriendRequestNew, request(3, "carol", "dave"))
	events.Publish(ctx, bus, events.FriendRequestNew, request(4, "erin", "me"))

	require.Equal(t, []int64{1}, ids(book.Sent()))
	require.Equal(t, []int64{4, 2}, ids(book.Received()))

	events.Publish(ctx, bus, events.FriendRequestAccepted, request(1, "me", "bob"))
	events.Publish(ctx, bus, events.FriendRequestAccepted, request(2, "carol", "me"))
	events.Publish(ctx, bus, events.FriendRequestRejected, request(4, "erin", "me"))

	require.Empty(t, book.Sent())
	require.Empty(t, book.Received())
	require.Equal(t, []string{"bob", "carol"}, book.Friends())

	events.Publish(ctx, bus, events.FriendRemoved, events.FriendRemoval{Username: "bob"})
	require.Equal(t, []string{"carol"}, book.Friends())

	unbind()
	events.Publish(ctx, bus, events.FriendRequestNew, request(5, "me", "frank"))
	require.Empty(t, book.Sent())
}

func TestBook_CancelledRequestIsDropped(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(nil)
	book := friends.NewBook("me", nil)
	book.Bind(bus)

	require.NoError(t, bus.DispatchRaw(t.Context(), []byte(
		`{"type":"friend_request_new","data":{"id":7,"from_user":"me","to_user":"bob","status":"pending"}}`,
	)))
	require.Len(t, book.Sent(), 1)

	require.NoError(t, bus.DispatchRaw(t.Context(), []byte(
		`{"type":"friend_request_cancelled","data":{"id":7,"from_user":"me","to_user":"bob","status":"cancelled"}}`,
	)))
	require.Empty(t, book.Sent())
}

func ids(requests []core.FriendRequest) []int64 {
	out := make([]int64, 0, len(requests))
	for _, r := range requests {
		out = append(out, r.ID)
	}
	return out
}
