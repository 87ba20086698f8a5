package notifications

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"feedsync/internal/core"
	"feedsync/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var unreadGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "feedsync_notifications_unread",
	Help: "The number of unread notifications",
})

// Inbox is the ordered notification list with its unread counter.
type Inbox struct {
	Logger *slog.Logger

	mu     sync.RWMutex
	items  map[int64]core.Notification
	unread int
}

func NewInbox(logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		Logger: logger.With("component", "notifications.Inbox"),
		items:  map[int64]core.Notification{},
	}
}

// Load replaces the inbox with the server's notifications.
func (i *Inbox) Load(ctx context.Context, api core.NotificationsAPI) error {
	list, err := api.Notifications(ctx)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	clear(i.items)
	for _, n := range list {
		i.items[n.ID] = n
	}
	i.recount()

	return nil
}

// Bind subscribes the inbox to the notification topics. The returned function unbinds it.
func (i *Inbox) Bind(bus *events.Bus) func() {
	created := events.Subscribe(bus, events.NotificationCreated, func(_ context.Context, n core.Notification) error {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.items[n.ID] = n
		i.recount()
		return nil
	})
	deleted := events.Subscribe(bus, events.NotificationDeleted, func(_ context.Context, d events.NotificationDelete) error {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.items, d.ID)
		i.recount()
		return nil
	})

	return func() {
		created()
		deleted()
	}
}

// List returns the notifications newest first, ties broken by id.
func (i *Inbox) List() []core.Notification {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := slices.Collect(maps.Values(i.items))
	slices.SortFunc(out, func(a, b core.Notification) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (i *Inbox) Unread() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.unread
}

// MarkRead marks everything read on the server, then locally.
func (i *Inbox) MarkRead(ctx context.Context, api core.NotificationsAPI) error {
	if err := api.MarkNotificationsRead(ctx); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for id, n := range i.items {
		n.Read = true
		i.items[id] = n
	}
	i.recount()

	return nil
}

// recount must be called with mu held.
func (i *Inbox) recount() {
	i.unread = 0
	for _, n := range i.items {
		if !n.Read {
			i.unread++
		}
	}
	unreadGauge.Set(float64(i.unread))
}
