package store

import (
	"log/slog"
	"sync"

	"feedsync/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_store_actions_total",
		Help: "The total number of reconciliation actions, by outcome",
	}, []string{"action", "outcome"})

	storedPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedsync_store_posts",
		Help: "The number of posts currently held by the entity store",
	})
)

type subscription[T any] struct {
	fn      func(T)
	removed bool
}

// Engine owns the session's State. Every writer goes through Dispatch, which is the
// only place a new State is installed.
type Engine struct {
	Logger *slog.Logger

	mu      sync.Mutex
	state   State
	version uint64
	// ids the new-post callbacks already fired for since the last bulk load
	announced map[core.PostID]bool

	subMu       sync.Mutex
	subscribers []*subscription[State]
	newPost     []*subscription[core.Post]

	// One goroutine at a time delivers; other writers leave their work in the queue.
	deliverMu  sync.Mutex
	delivering bool
	pending    bool
	fresh      []core.Post
	delivered  uint64
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger:    logger.With("component", "store.Engine"),
		state:     NewState(),
		announced: map[core.PostID]bool{},
	}
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Dispatch reduces the action against the current state and notifies subscribers
// outside the lock when something changed. Subscribers see states in installation order
// and always end on the latest one; intermediate states may be skipped.
func (e *Engine) Dispatch(action Action) Result {
	if action == nil {
		actionsApplied.WithLabelValues("unknown", "noop").Inc()
		return Result{}
	}

	e.mu.Lock()
	next, result := Reduce(e.state, action)

	var fresh []core.Post
	if result.Changed {
		e.state = next
		e.version++

		if _, ok := action.(BulkLoad); ok {
			e.announced = make(map[core.PostID]bool, next.Len())
			for id := range next.posts {
				e.announced[id] = true
			}
		}
		for _, id := range result.Inserted {
			if e.announced[id] {
				continue
			}
			e.announced[id] = true
			fresh = append(fresh, next.posts[id])
		}
	}
	e.mu.Unlock()

	outcome := "noop"
	if result.Changed {
		outcome = "applied"
		storedPosts.Set(float64(next.Len()))
	}
	actionsApplied.WithLabelValues(action.name(), outcome).Inc()

	if !result.Changed {
		return result
	}

	e.Logger.Debug("action applied", "action", action.name(), "posts", next.Len(), "removed", len(result.Removed))

	e.deliver(fresh)

	return result
}

// deliver queues fresh posts and a state change. The caller that finds no delivery in
// progress drains the queue, handing subscribers the latest installed state each round.
// A Dispatch from inside a subscriber only queues, so it never deadlocks.
func (e *Engine) deliver(fresh []core.Post) {
	e.deliverMu.Lock()
	e.fresh = append(e.fresh, fresh...)
	e.pending = true
	if e.delivering {
		e.deliverMu.Unlock()
		return
	}
	e.delivering = true

	for e.pending {
		e.pending = false
		posts := e.fresh
		e.fresh = nil
		e.deliverMu.Unlock()

		for _, post := range posts {
			notify(e, e.newPostSnapshot(), post)
		}

		e.mu.Lock()
		state, version := e.state, e.version
		e.mu.Unlock()

		e.deliverMu.Lock()
		if version > e.delivered {
			e.delivered = version
			e.deliverMu.Unlock()
			notify(e, e.subscriberSnapshot(), state)
			e.deliverMu.Lock()
		}
	}

	e.delivering = false
	e.deliverMu.Unlock()
}

func (e *Engine) BulkLoad(posts []core.Post, links Links) {
	e.Dispatch(BulkLoad{Posts: posts, Links: links})
}

// Upsert reports whether the store changed.
func (e *Engine) Upsert(post core.Post) bool {
	return e.Dispatch(Upsert{Post: post}).Changed
}

// UpsertParent reports whether the parent was stored, see UpsertParent.
func (e *Engine) UpsertParent(post core.Post) bool {
	return e.Dispatch(UpsertParent{Post: post}).Changed
}

func (e *Engine) PartialUpdate(id core.PostID, patches ...core.Patch) bool {
	return e.Dispatch(PartialUpdate{ID: id, Patches: patches}).Changed
}

// Remove returns the ids that were deleted.
func (e *Engine) Remove(id core.PostID) []core.PostID {
	return e.Dispatch(Remove{ID: id}).Removed
}

// Reset empties the store.
func (e *Engine) Reset() {
	e.BulkLoad(nil, nil)
}

// Subscribe registers fn to receive every new state. The returned function unsubscribes.
func (e *Engine) Subscribe(fn func(State)) func() {
	return subscribe(&e.subMu, &e.subscribers, fn)
}

// OnNewPost registers fn to be called once for every id an Upsert introduces.
func (e *Engine) OnNewPost(fn func(core.Post)) func() {
	return subscribe(&e.subMu, &e.newPost, fn)
}

func (e *Engine) subscriberSnapshot() []*subscription[State] {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return append([]*subscription[State]{}, e.subscribers...)
}

func (e *Engine) newPostSnapshot() []*subscription[core.Post] {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return append([]*subscription[core.Post]{}, e.newPost...)
}

func subscribe[T any](mu *sync.Mutex, list *[]*subscription[T], fn func(T)) func() {
	sub := &subscription[T]{fn: fn}

	mu.Lock()
	*list = append(*list, sub)
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		sub.removed = true
		for i, s := range *list {
			if s == sub {
				*list = append((*list)[:i:i], (*list)[i+1:]...)
				return
			}
		}
	}
}

func notify[T any](e *Engine, subs []*subscription[T], value T) {
	for _, sub := range subs {
		e.subMu.Lock()
		removed := sub.removed
		e.subMu.Unlock()
		if removed {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					e.Logger.Error("store subscriber panicked", "panic", r)
				}
			}()
			sub.fn(value)
		}()
	}
}
