package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"feedsync/internal/core"
	"feedsync/internal/events"
	"feedsync/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var parentFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedsync_parent_fetches_total",
	Help: "The total number of lazy parent fetches, by outcome",
}, []string{"outcome"})

// Syncer applies the post events of the bus to the engine and lazily fetches parents of
// reposts, quotes and replies that are not loaded.
type Syncer struct {
	Logger *slog.Logger
	Bus    *events.Bus
	Engine *store.Engine
	Posts  core.PostReader

	mu          sync.Mutex
	inflight    map[core.PostID]bool
	unsubscribe []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Init binds the post topics. Background fetches outlive ctx and stop on Shutdown.
func (s *Syncer) Init(_ context.Context) error {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	s.Logger = s.Logger.With("component", "syncer.Syncer")

	s.inflight = map[core.PostID]bool{}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.unsubscribe = []func(){
		events.Subscribe(s.Bus, events.PostCreated, s.postCreated),
		events.Subscribe(s.Bus, events.PostUpdated, func(_ context.Context, u events.PostUpdate) error {
			s.Engine.PartialUpdate(u.ID, u.Patches()...)
			return nil
		}),
		events.Subscribe(s.Bus, events.PostUserUpdated, func(_ context.Context, u events.PostUserUpdate) error {
			s.Engine.PartialUpdate(u.ID, u.Patches()...)
			return nil
		}),
		events.Subscribe(s.Bus, events.PostDeleted, func(_ context.Context, d events.PostDelete) error {
			s.Engine.Remove(d.ID)
			return nil
		}),
	}

	return nil
}

// Shutdown unbinds the topics, cancels parent fetches and waits for them.
func (s *Syncer) Shutdown(_ context.Context) error {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.cancel()
	s.wg.Wait()
	return nil
}

// Wait blocks until the parent fetches started so far are done.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func (s *Syncer) postCreated(_ context.Context, post core.Post) error {
	s.Engine.Upsert(post)
	s.EnsureParent(post)
	return nil
}

// EnsureParent starts a fetch of post's parent unless it is stored or already being
// fetched.
func (s *Syncer) EnsureParent(post core.Post) {
	parent, ok := post.ParentID()
	if !ok || s.Engine.State().Has(parent) {
		return
	}

	s.mu.Lock()
	if s.inflight[parent] {
		s.mu.Unlock()
		return
	}
	s.inflight[parent] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, parent)
			s.mu.Unlock()
			s.wg.Done()
		}()

		s.fetchParent(parent)
	}()
}

func (s *Syncer) fetchParent(id core.PostID) {
	post, err := s.Posts.GetPost(s.ctx, id)
	if err != nil {
		switch {
		case s.ctx.Err() != nil:
			parentFetches.WithLabelValues("cancelled").Inc()
		case errors.Is(err, core.ErrNotFound):
			parentFetches.WithLabelValues("not_found").Inc()
			s.Logger.Debug("parent no longer exists", "id", id)
		default:
			parentFetches.WithLabelValues("failed").Inc()
			s.Logger.Warn("failed to fetch parent", "id", id, "error", err)
		}
		return
	}

	// The view context may have changed while fetching.
	if !s.Engine.UpsertParent(post) && !s.Engine.State().Has(post.ID) {
		parentFetches.WithLabelValues("stale").Inc()
		return
	}

	parentFetches.WithLabelValues("fetched").Inc()
	s.EnsureParent(post)
}
