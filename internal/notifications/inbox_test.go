package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedsync/internal/core"
	"feedsync/internal/events"
	"feedsync/internal/notifications"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	list     []core.Notification
	markErr  error
	markRead int
}

func (f *fakeAPI) Notifications(context.Context) ([]core.Notification, error) {
	return f.list, nil
}

func (f *fakeAPI) MarkNotificationsRead(context.Context) error {
	f.markRead++
	return f.markErr
}

func notification(id int64, read bool, at time.Duration) core.Notification {
	return core.Notification{ID: id, Type: "like", Read: read, CreatedAt: epoch.Add(at)}
}

func ids(list []core.Notification) []int64 {
	return lo.Map(list, func(n core.Notification, _ int) int64 { return n.ID })
}

func TestInbox_LoadOrdersAndCounts(t *testing.T) {
	t.Parallel()

	inbox := notifications.NewInbox(nil)
	err := inbox.Load(t.Context(), &fakeAPI{list: []core.Notification{
		notification(1, true, time.Minute),
		notification(2, false, 3*time.Minute),
		notification(3, false, time.Minute),
	}})

	require.NoError(t, err)
	require.Equal(t, []int64{2, 3, 1}, ids(inbox.List()))
	require.Equal(t, 2, inbox.Unread())
}

func TestInbox_FollowsEvents(t *testing.T) {
	t.Parallel()

	bus := events.NewBus(nil)
	inbox := notifications.NewInbox(nil)
	unbind := inbox.Bind(bus)

	ctx := t.Context()
	events.Publish(ctx, bus, events.NotificationCreated, notification(1, false, time.Minute))
	events.Publish(ctx, bus, events.NotificationCreated, notification(2, false, 2*time.Minute))
	events.Publish(ctx, bus, events.NotificationCreated, notification(2, false, 2*time.Minute))

	require.Equal(t, []int64{2, 1}, ids(inbox.List()))
	require.Equal(t, 2, inbox.Unread())

	require.NoError(t, bus.DispatchRaw(ctx, []byte(`{"type":"notification_delete","data":{"id":2}}`)))
	require.Equal(t, []int64{1}, ids(inbox.List()))
	require.Equal(t, 1, inbox.Unread())

	require.NoError(t, bus.DispatchRaw(ctx, []byte(`{"type":"notification_delete","data":{"id":99}}`)))
	require.Equal(t, 1, inbox.Unread())

	unbind()
	events.Publish(ctx, bus, events.NotificationCreated, notification(3, false, time.Hour))
	require.Len(t, inbox.List(), 1)
}

func TestInbox_MarkRead(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{list: []core.Notification{notification(1, false, 0), notification(2, false, 0)}}

	inbox := notifications.NewInbox(nil)
	require.NoError(t, inbox.Load(t.Context(), api))

	api.markErr = errors.New("boom")
	require.Error(t, inbox.MarkRead(t.Context(), api))
	require.Equal(t, 2, inbox.Unread())

	api.markErr = nil
	require.NoError(t, inbox.MarkRead(t.Context(), api))
	require.Zero(t, inbox.Unread())
	require.Equal(t, 2, api.markRead)
	require.True(t, lo.EveryBy(inbox.List(), func(n core.Notification) bool { return n.Read }))
}
