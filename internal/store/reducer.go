package store

import (
	"slices"

	"feedsync/internal/core"
)

// Action is one of the four reconciliation operations.
type Action interface {
	name() string
}

// BulkLoad replaces the whole store. Used when the view context changes.
type BulkLoad struct {
	Posts []core.Post
	Links Links
}

// Upsert inserts or overwrites one record by id.
type Upsert struct {
	Post core.Post
}

// UpsertParent upserts a lazily fetched parent, but only while a stored post still points
// at it. A parent whose children left the store in the meantime is dropped.
type UpsertParent struct {
	Post core.Post
}

// PartialUpdate merges patches into an existing record and mirrors counters onto reposts.
type PartialUpdate struct {
	ID      core.PostID
	Patches []core.Patch
}

// Remove deletes a record together with everything that transitively points at it.
type Remove struct {
	ID core.PostID
}

func (BulkLoad) name() string      { return "bulk_load" }
func (Upsert) name() string        { return "upsert" }
func (UpsertParent) name() string  { return "upsert_parent" }
func (PartialUpdate) name() string { return "partial_update" }
func (Remove) name() string        { return "remove" }

// Result describes what a reduction did.
type Result struct {
	// Changed is false when the action was a no-op and the input state was returned as is.
	Changed bool
	// Inserted holds ids that were not in the store before the action.
	Inserted []core.PostID
	// Removed holds ids deleted by the action, cascade included.
	Removed []core.PostID
}

// Reduce applies an action to a state and returns the next state. It never panics on
// inconsistent input and never mutates s.
func Reduce(s State, action Action) (State, Result) {
	switch a := action.(type) {
	case BulkLoad:
		return reduceBulkLoad(a)
	case Upsert:
		return reduceUpsert(s, a)
	case UpsertParent:
		if len(s.links[a.Post.ID]) == 0 {
			return s, Result{}
		}
		return reduceUpsert(s, Upsert(a))
	case PartialUpdate:
		return reducePartialUpdate(s, a)
	case Remove:
		return reduceRemove(s, a)
	default:
		return s, Result{}
	}
}

func reduceBulkLoad(a BulkLoad) (State, Result) {
	next := NewState()
	for _, post := range a.Posts {
		next.posts[post.ID] = post
	}

	// Keep the server order of the given links, drop what does not match a stored child.
	for parent, children := range a.Links {
		for _, child := range children {
			post, ok := next.posts[child]
			if !ok {
				continue
			}
			if p, ok := post.ParentID(); ok && p == parent {
				next.link(parent, child)
			}
		}
	}
	for _, post := range a.Posts {
		if parent, ok := post.ParentID(); ok {
			next.link(parent, post.ID)
		}
	}

	for id, post := range next.posts {
		next.posts[id] = syncRepost(next, post)
	}

	return next, Result{Changed: true}
}

func reduceUpsert(s State, a Upsert) (State, Result) {
	post := syncRepost(s, a.Post)

	existing, exists := s.posts[post.ID]
	if exists && existing.Equal(post) {
		return s, Result{}
	}

	next := s.clone()
	next.posts[post.ID] = post

	if exists {
		if old, ok := existing.ParentID(); ok {
			if p, ok := post.ParentID(); !ok || p != old {
				next.unlink(old, post.ID)
			}
		}
	}
	if parent, ok := post.ParentID(); ok {
		next.link(parent, post.ID)
	}

	// A parent carries the counters of its reposts.
	for _, child := range next.links[post.ID] {
		if repost, ok := next.posts[child]; ok && repost.Kind == core.KindRepost {
			repost.Counters = post.Counters
			next.posts[child] = repost
		}
	}

	result := Result{Changed: true}
	if !exists {
		result.Inserted = []core.PostID{post.ID}
	}
	return next, result
}

func reducePartialUpdate(s State, a PartialUpdate) (State, Result) {
	existing, ok := s.posts[a.ID]
	if !ok {
		return s, Result{}
	}
	if existing.Kind == core.KindRepost {
		return reduceRepostUpdate(s, existing, a.Patches)
	}

	updated := existing.Apply(a.Patches...)

	next := s.clone()
	changed := false
	if !updated.Equal(existing) {
		next.posts[a.ID] = updated
		changed = true
	}

	for _, child := range s.links[a.ID] {
		repost, ok := s.posts[child]
		if !ok || repost.Kind != core.KindRepost {
			continue
		}
		mirrored := repost.MirrorCounters(a.Patches...)
		if !mirrored.Equal(repost) {
			next.posts[child] = mirrored
			changed = true
		}
	}

	if !changed {
		return s, Result{}
	}
	return next, Result{Changed: true}
}

// reduceRepostUpdate applies the content part of the patches to the repost and forwards the
// counter part to its parent. Without a stored parent the counters are dropped.
func reduceRepostUpdate(s State, repost core.Post, patches []core.Patch) (State, Result) {
	content, counters := core.SplitCounters(patches...)

	next, changed := s, false
	if updated := repost.Apply(content...); !updated.Equal(repost) {
		next = s.clone()
		next.posts[repost.ID] = updated
		changed = true
	}

	if parentID, ok := repost.ParentID(); ok && len(counters) > 0 {
		if parent, ok := next.posts[parentID]; ok && parent.Kind != core.KindRepost {
			var res Result
			next, res = reducePartialUpdate(next, PartialUpdate{ID: parentID, Patches: counters})
			changed = changed || res.Changed
		}
	}

	if !changed {
		return s, Result{}
	}
	return next, Result{Changed: true}
}

func reduceRemove(s State, a Remove) (State, Result) {
	_, stored := s.posts[a.ID]
	_, indexed := s.links[a.ID]
	if !stored && !indexed {
		return s, Result{}
	}

	next := s.clone()

	visited := map[core.PostID]bool{}
	stack := []core.PostID{a.ID}
	var removed []core.PostID

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}
		visited[id] = true

		if _, ok := next.posts[id]; ok {
			delete(next.posts, id)
			removed = append(removed, id)
		}

		children := next.links[id]
		delete(next.links, id)
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i]] {
				stack = append(stack, children[i])
			}
		}
	}

	for parent, children := range next.links {
		if !slices.ContainsFunc(children, func(id core.PostID) bool { return visited[id] }) {
			continue
		}
		rest := slices.DeleteFunc(slices.Clone(children), func(id core.PostID) bool { return visited[id] })
		if len(rest) == 0 {
			delete(next.links, parent)
			continue
		}
		next.links[parent] = rest
	}

	return next, Result{Changed: true, Removed: removed}
}

// syncRepost copies the parent's counters into a repost when the parent is stored.
func syncRepost(s State, post core.Post) core.Post {
	if post.Kind != core.KindRepost {
		return post
	}
	parentID, ok := post.ParentID()
	if !ok || parentID == post.ID {
		return post
	}
	if parent, ok := s.posts[parentID]; ok {
		post.Counters = parent.Counters
	}
	return post
}
