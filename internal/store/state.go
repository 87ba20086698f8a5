package store

import (
	"maps"
	"slices"

	"feedsync/internal/core"

	"github.com/samber/lo"
)

// Links maps a parent id to the ordered ids of the posts that point at it.
type Links map[core.PostID][]core.PostID

// State is an immutable snapshot of the entity store and its link index.
// Only Reduce produces new states; readers may share a State freely.
type State struct {
	posts map[core.PostID]core.Post
	links Links
}

func NewState() State {
	return State{
		posts: map[core.PostID]core.Post{},
		links: Links{},
	}
}

func (s State) Get(id core.PostID) (core.Post, bool) {
	post, ok := s.posts[id]
	return post, ok
}

func (s State) Has(id core.PostID) bool {
	_, ok := s.posts[id]
	return ok
}

func (s State) Len() int {
	return len(s.posts)
}

// Children returns a copy of the child ids indexed under id.
func (s State) Children(id core.PostID) []core.PostID {
	return slices.Clone(s.links[id])
}

// Links returns a deep copy of the link index.
func (s State) Links() Links {
	out := make(Links, len(s.links))
	for parent, children := range s.links {
		out[parent] = slices.Clone(children)
	}
	return out
}

// Sorted returns all posts in display order.
func (s State) Sorted() []core.Post {
	posts := lo.Values(s.posts)
	SortPosts(posts)
	return posts
}

// SortPosts orders posts newest first, ties broken by id descending.
func SortPosts(posts []core.Post) {
	slices.SortFunc(posts, func(a, b core.Post) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}

func (s State) clone() State {
	return State{
		posts: maps.Clone(s.posts),
		links: maps.Clone(s.links),
	}
}

func (s *State) link(parent, child core.PostID) {
	if slices.Contains(s.links[parent], child) {
		return
	}
	// Append on a fresh slice, older states may share the backing array.
	s.links[parent] = append(slices.Clone(s.links[parent]), child)
}

func (s *State) unlink(parent, child core.PostID) {
	children, ok := s.links[parent]
	if !ok || !slices.Contains(children, child) {
		return
	}
	rest := lo.Without(children, child)
	if len(rest) == 0 {
		delete(s.links, parent)
		return
	}
	s.links[parent] = rest
}

// Consistent reports whether every parent reference has a matching link entry and every
// link entry points at a stored child whose parent is the key.
func (s State) Consistent() bool {
	for id, post := range s.posts {
		parent, ok := post.ParentID()
		if ok && !slices.Contains(s.links[parent], id) {
			return false
		}
	}
	for parent, children := range s.links {
		if len(children) == 0 {
			return false
		}
		if len(lo.Uniq(children)) != len(children) {
			return false
		}
		for _, child := range children {
			post, ok := s.posts[child]
			if !ok {
				return false
			}
			if p, ok := post.ParentID(); !ok || p != parent {
				return false
			}
		}
	}
	return true
}
