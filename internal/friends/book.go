package friends

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"feedsync/internal/core"
	"feedsync/internal/events"

	"github.com/samber/lo"
)

// Book holds the viewer's pending friend requests, keyed by request id, and friends. It
// is kept apart from the post store.
type Book struct {
	Logger *slog.Logger
	// Me is the viewer's username, it decides whether a request was sent or received.
	Me string

	mu       sync.RWMutex
	sent     map[int64]core.FriendRequest
	received map[int64]core.FriendRequest
	friends  map[string]bool
}

func NewBook(me string, logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		Logger:   logger.With("component", "friends.Book"),
		Me:       me,
		sent:     map[int64]core.FriendRequest{},
		received: map[int64]core.FriendRequest{},
		friends:  map[string]bool{},
	}
}

// Load replaces the book with the server's state.
func (b *Book) Load(ctx context.Context, api core.FriendsAPI) error {
	requests, err := api.FriendRequests(ctx)
	if err != nil {
		return err
	}
	profiles, err := api.Friends(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.sent)
	clear(b.received)
	for _, r := range requests {
		if r.Status == core.FriendRequestPending || r.Status == "" {
			b.add(r)
		}
	}

	b.friends = lo.SliceToMap(profiles, func(p core.Profile) (string, bool) {
		return p.Username, true
	})

	b.Logger.Info("friends loaded", "friends", len(b.friends), "sent", len(b.sent), "received", len(b.received))

	return nil
}

// Bind subscribes the book to the friend topics. The returned function unbinds it.
func (b *Book) Bind(bus *events.Bus) func() {
	unsubscribe := []func(){
		events.Subscribe(bus, events.FriendRequestNew, b.handle(b.requested)),
		events.Subscribe(bus, events.FriendRequestAccepted, b.handle(b.accepted)),
		events.Subscribe(bus, events.FriendRequestRejected, b.handle(b.closed)),
		events.Subscribe(bus, events.FriendRequestCancelled, b.handle(b.closed)),
		events.Subscribe(bus, events.FriendRemoved, func(_ context.Context, r events.FriendRemoval) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.friends, r.Username)
			return nil
		}),
	}

	return func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}
}

// Sent returns the pending requests the viewer sent, newest first.
func (b *Book) Sent() []core.FriendRequest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sorted(b.sent)
}

// Received returns the pending requests sent to the viewer, newest first.
func (b *Book) Received() []core.FriendRequest {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sorted(b.received)
}

// Friends returns friend usernames in alphabetical order.
func (b *Book) Friends() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.friends))
}

func (b *Book) IsFriend(username string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.friends[username]
}

func (b *Book) handle(fn func(core.FriendRequest)) func(context.Context, core.FriendRequest) error {
	return func(_ context.Context, r core.FriendRequest) error {
		b.mu.Lock()
		defer b.mu.Unlock()
		fn(r)
		return nil
	}
}

func (b *Book) requested(r core.FriendRequest) {
	b.add(r)
}

func (b *Book) accepted(r core.FriendRequest) {
	b.closed(r)

	switch b.Me {
	case r.From:
		b.friends[r.To] = true
	case r.To:
		b.friends[r.From] = true
	}
}

func (b *Book) closed(r core.FriendRequest) {
	delete(b.sent, r.ID)
	delete(b.received, r.ID)
}

// add must be called with mu held.
func (b *Book) add(r core.FriendRequest) {
	switch b.Me {
	case r.From:
		b.sent[r.ID] = r
	case r.To:
		b.received[r.ID] = r
	default:
		b.Logger.Debug("ignoring friend request of other users", "id", r.ID)
	}
}

func sorted(requests map[int64]core.FriendRequest) []core.FriendRequest {
	out := slices.Collect(maps.Values(requests))
	slices.SortFunc(out, func(a, b core.FriendRequest) int {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return b.CreatedAt.Compare(a.CreatedAt)
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
