package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"feedsync/internal/core"
	"feedsync/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
)

var interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedsync_interactions_total",
	Help: "The total number of user interactions, by action and outcome",
}, []string{"action", "outcome"})

// Interactions applies the user's own actions optimistically, then reconciles the store
// with the server response. When the request fails the pre-action values are written back
// and the error is returned.
type Interactions struct {
	Logger *slog.Logger
	Engine *store.Engine
	API    core.PostWriter
	// Username identifies the viewer's own repost records.
	Username string
}

func (i *Interactions) Like(ctx context.Context, id core.PostID) error {
	return i.like(ctx, "like", id, true)
}

func (i *Interactions) Unlike(ctx context.Context, id core.PostID) error {
	return i.like(ctx, "unlike", id, false)
}

func (i *Interactions) like(ctx context.Context, action string, id core.PostID, liked bool) error {
	target, err := i.target(id)
	if err != nil {
		return err
	}
	if target.LikedByUser == liked {
		return nil
	}

	delta := lo.Ternary(liked, 1, -1)
	i.Engine.PartialUpdate(target.ID, core.CounterPatch{
		LikesCount:  lo.ToPtr(max(target.LikesCount+delta, 0)),
		LikedByUser: &liked,
	})

	call := i.API.Unlike
	if liked {
		call = i.API.Like
	}

	result, err := call(ctx, target.ID)
	if err != nil {
		return i.restore(action, target, err)
	}

	i.Engine.PartialUpdate(target.ID, core.CounterPatch{
		LikesCount:  &result.LikesCount,
		LikedByUser: &result.Liked,
	})
	interactionsTotal.WithLabelValues(action, "ok").Inc()

	return nil
}

// Repost reposts id, or the original when id is itself a repost, and stores the new
// repost record.
func (i *Interactions) Repost(ctx context.Context, id core.PostID) error {
	target, err := i.target(id)
	if err != nil {
		return err
	}
	if target.RepostedByUser {
		return nil
	}

	i.Engine.PartialUpdate(target.ID, core.CounterPatch{
		RepostsCount:   lo.ToPtr(target.RepostsCount + 1),
		RepostedByUser: lo.ToPtr(true),
	})

	repost, err := i.API.Repost(ctx, target.ID)
	if err != nil {
		return i.restore("repost", target, err)
	}

	i.Engine.Upsert(repost)
	interactionsTotal.WithLabelValues("repost", "ok").Inc()

	return nil
}

// Unrepost removes the viewer's repost of id and its local repost records.
func (i *Interactions) Unrepost(ctx context.Context, id core.PostID) error {
	target, err := i.target(id)
	if err != nil {
		return err
	}
	if !target.RepostedByUser {
		return nil
	}

	i.Engine.PartialUpdate(target.ID, core.CounterPatch{
		RepostsCount:   lo.ToPtr(max(target.RepostsCount-1, 0)),
		RepostedByUser: lo.ToPtr(false),
	})

	if err := i.API.Unrepost(ctx, target.ID); err != nil {
		return i.restore("unrepost", target, err)
	}

	if i.Username != "" {
		state := i.Engine.State()
		for _, child := range state.Children(target.ID) {
			post, ok := state.Get(child)
			if ok && post.Kind == core.KindRepost && post.Author.Username == i.Username {
				i.Engine.Remove(child)
			}
		}
	}
	interactionsTotal.WithLabelValues("unrepost", "ok").Inc()

	return nil
}

// Delete removes id and everything depending on it. A rejected delete puts the removed
// records back.
func (i *Interactions) Delete(ctx context.Context, id core.PostID) error {
	before := i.Engine.State()
	if !before.Has(id) {
		return fmt.Errorf("%w: post %d", core.ErrNotFound, id)
	}

	removed := i.Engine.Remove(id)

	if err := i.API.DeletePost(ctx, id); err != nil {
		interactionsTotal.WithLabelValues("delete", "failed").Inc()

		for _, removedID := range removed {
			if post, ok := before.Get(removedID); ok {
				i.Engine.Upsert(post)
			}
		}
		return err
	}

	interactionsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Publish creates a top-level post.
func (i *Interactions) Publish(ctx context.Context, description string) (core.Post, error) {
	return i.create("publish", func() (core.Post, error) {
		return i.API.CreatePost(ctx, description)
	})
}

func (i *Interactions) Reply(ctx context.Context, id core.PostID, description string) (core.Post, error) {
	return i.create("reply", func() (core.Post, error) {
		return i.API.Reply(ctx, id, description)
	})
}

func (i *Interactions) Quote(ctx context.Context, id core.PostID, description string) (core.Post, error) {
	return i.create("quote", func() (core.Post, error) {
		return i.API.Quote(ctx, id, description)
	})
}

func (i *Interactions) create(action string, call func() (core.Post, error)) (core.Post, error) {
	post, err := call()
	if err != nil {
		interactionsTotal.WithLabelValues(action, "failed").Inc()
		return core.Post{}, err
	}

	if err := post.Validate(); err != nil {
		interactionsTotal.WithLabelValues(action, "failed").Inc()
		return core.Post{}, err
	}

	i.Engine.Upsert(post)
	interactionsTotal.WithLabelValues(action, "ok").Inc()

	return post, nil
}

// target resolves the post an interaction applies to: reposts forward to their parent.
func (i *Interactions) target(id core.PostID) (core.Post, error) {
	state := i.Engine.State()

	post, ok := state.Get(id)
	if !ok {
		return core.Post{}, fmt.Errorf("%w: post %d", core.ErrNotFound, id)
	}

	if post.Kind != core.KindRepost {
		return post, nil
	}

	parentID, _ := post.ParentID()
	parent, ok := state.Get(parentID)
	if !ok {
		return core.Post{}, fmt.Errorf("%w: original of repost %d is not loaded", core.ErrNotFound, id)
	}

	return parent, nil
}

func (i *Interactions) restore(action string, target core.Post, err error) error {
	interactionsTotal.WithLabelValues(action, "failed").Inc()

	i.logger().Warn("interaction rejected, restoring", "action", action, "id", target.ID, "error", err)
	i.Engine.PartialUpdate(target.ID, core.CountersPatch(target.Counters))

	return err
}

func (i *Interactions) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.Default().With("component", "syncer.Interactions")
	}
	return i.Logger.With("component", "syncer.Interactions")
}
