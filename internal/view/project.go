package view

import (
	"slices"

	"feedsync/internal/core"
	"feedsync/internal/store"

	"github.com/samber/lo"
)

// Item is a post composed with its resolved parent. It is derived from a State on demand
// and never stored.
type Item struct {
	Post core.Post

	// Parent is the resolved parent of a repost or quote, nil while it is not loaded.
	Parent *core.Post
	// ParentLoading is set for reposts and quotes whose parent is not in the store yet.
	ParentLoading bool
	// ParentReadOnly is set for quotes: the parent is a frozen snapshot without interactions.
	ParentReadOnly bool
}

// Counters returns the counters a surface displays for the item. A repost shows the
// counters of its parent.
func (i Item) Counters() core.Counters {
	if i.Post.Kind == core.KindRepost && i.Parent != nil {
		return i.Parent.Counters
	}
	return i.Post.Counters
}

// Interactive reports whether like and repost buttons apply to the item.
func (i Item) Interactive() bool {
	return !(i.Post.Kind == core.KindRepost && i.ParentLoading)
}

// Thread is the detail page of a post.
type Thread struct {
	Item
	Replies []Item
}

// Project composes the post stored under id.
func Project(state store.State, id core.PostID) (Item, bool) {
	post, ok := state.Get(id)
	if !ok {
		return Item{}, false
	}
	return project(state, post), true
}

// Detail projects id together with its replies in link index order.
func Detail(state store.State, id core.PostID) (Thread, bool) {
	item, ok := Project(state, id)
	if !ok {
		return Thread{}, false
	}

	thread := Thread{Item: item}
	for _, child := range state.Children(id) {
		post, ok := state.Get(child)
		if !ok || post.Kind != core.KindReply {
			continue
		}
		thread.Replies = append(thread.Replies, project(state, post))
	}

	return thread, true
}

// Feed projects every top-level post in display order. Replies are not part of feeds.
func Feed(state store.State) []Item {
	return lo.FilterMap(state.Sorted(), func(post core.Post, _ int) (Item, bool) {
		if post.Kind == core.KindReply {
			return Item{}, false
		}
		return project(state, post), true
	})
}

// MissingParents lists the parents of stored reposts and quotes that are not loaded,
// in ascending order.
func MissingParents(state store.State) []core.PostID {
	missing := lo.FilterMap(state.Sorted(), func(post core.Post, _ int) (core.PostID, bool) {
		parent, ok := post.ParentID()
		if !ok || post.Kind == core.KindReply {
			return 0, false
		}
		return parent, !state.Has(parent)
	})

	missing = lo.Uniq(missing)
	slices.Sort(missing)
	return missing
}

func project(state store.State, post core.Post) Item {
	item := Item{Post: post}

	if post.Kind != core.KindRepost && post.Kind != core.KindQuote {
		return item
	}

	item.ParentReadOnly = post.Kind == core.KindQuote

	parentID, ok := post.ParentID()
	if !ok {
		item.ParentLoading = true
		return item
	}

	parent, ok := state.Get(parentID)
	if !ok {
		item.ParentLoading = true
		return item
	}
	item.Parent = &parent

	return item
}
