package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"feedsync/internal/core"
	"feedsync/internal/store"
	"feedsync/pkg/async"

	"github.com/samber/lo"
)

const defaultWorkers = 4

// ErrSuperseded is returned by a load that finished after a newer one had started. Its
// result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer one")

// Context names the slice of posts a surface operates over.
type Context string

const (
	ContextFeed    Context = "feed"
	ContextProfile Context = "profile"
	ContextDetail  Context = "detail"
	ContextLiked   Context = "liked"
)

// Loader switches the engine between view contexts. Each load fetches a complete slice
// and bulk-loads it; a failed load leaves the store untouched.
type Loader struct {
	Logger  *slog.Logger
	Engine  *store.Engine
	Posts   core.PostReader
	Workers int
	// MaxPages bounds the list endpoints, zero reads every page.
	MaxPages int

	mu         sync.Mutex
	generation uint64
	current    Context
}

// Current returns the context of the last applied load.
func (l *Loader) Current() Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) Feed(ctx context.Context) error {
	return l.load(ctx, ContextFeed, func(ctx context.Context) ([]core.Post, store.Links, error) {
		posts, err := l.Posts.ListPosts(ctx, core.PostQuery{MaxPages: l.MaxPages})
		return posts, nil, err
	})
}

func (l *Loader) Profile(ctx context.Context, username string) error {
	return l.load(ctx, ContextProfile, func(ctx context.Context) ([]core.Post, store.Links, error) {
		posts, err := l.Posts.ListPosts(ctx, core.PostQuery{Author: username, MaxPages: l.MaxPages})
		return posts, nil, err
	})
}

// Detail loads a post with the posts pointing at it. The link index keeps the order the
// server returned them in.
func (l *Loader) Detail(ctx context.Context, id core.PostID) error {
	return l.load(ctx, ContextDetail, func(ctx context.Context) ([]core.Post, store.Links, error) {
		post, err := l.Posts.GetPost(ctx, id)
		if err != nil {
			return nil, nil, err
		}

		children, err := l.Posts.ListPosts(ctx, core.PostQuery{Parent: &id, MaxPages: l.MaxPages})
		if err != nil {
			return nil, nil, err
		}

		links := store.Links{}
		if len(children) > 0 {
			links[id] = lo.Map(children, func(p core.Post, _ int) core.PostID { return p.ID })
		}

		return append([]core.Post{post}, children...), links, nil
	})
}

func (l *Loader) Liked(ctx context.Context) error {
	return l.load(ctx, ContextLiked, func(ctx context.Context) ([]core.Post, store.Links, error) {
		posts, err := l.Posts.LikedPosts(ctx)
		return posts, nil, err
	})
}

type fetchFunc func(ctx context.Context) ([]core.Post, store.Links, error)

func (l *Loader) load(ctx context.Context, name Context, fetch fetchFunc) error {
	l.mu.Lock()
	l.generation++
	generation := l.generation
	l.mu.Unlock()

	logger := l.logger().With("context", name)

	posts, links, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}

	parents, err := l.fetchParents(ctx, logger, posts)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	posts = append(posts, parents...)

	l.mu.Lock()
	defer l.mu.Unlock()

	if generation != l.generation {
		logger.Debug("discarding superseded load")
		return ErrSuperseded
	}
	// An aborted load is discarded even when its responses made it back.
	if err := ctx.Err(); err != nil {
		logger.Debug("discarding aborted load")
		return fmt.Errorf("load %s: %w", name, err)
	}

	l.Engine.BulkLoad(posts, links)
	l.current = name

	logger.Info("view context loaded", "posts", len(posts))

	return nil
}

// fetchParents fetches the parents of reposts and quotes missing from posts. Parents that
// cannot be fetched are skipped; their children render as loading. Only cancellation of
// ctx is returned as an error.
func (l *Loader) fetchParents(ctx context.Context, logger *slog.Logger, posts []core.Post) ([]core.Post, error) {
	have := lo.SliceToMap(posts, func(p core.Post) (core.PostID, bool) { return p.ID, true })

	missing := lo.Uniq(lo.FilterMap(posts, func(p core.Post, _ int) (core.PostID, bool) {
		parent, ok := p.ParentID()
		if !ok || p.Kind == core.KindReply {
			return 0, false
		}
		return parent, !have[parent]
	}))
	if len(missing) == 0 {
		return nil, nil
	}

	workers := l.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := async.Collect(ctx, workers, missing, l.Posts.GetPost)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var parents []core.Post
	for i, result := range results {
		parent, err := result.Unpack()
		if err != nil {
			logger.Warn("failed to fetch parent", "id", missing[i], "error", err)
			continue
		}
		if parent.ID == 0 {
			continue
		}
		parents = append(parents, parent)
	}

	return parents, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default().With("component", "syncer.Loader")
	}
	return l.Logger.With("component", "syncer.Loader")
}
