package syncer_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"feedsync/internal/core"

	"github.com/samber/lo"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func post(id core.PostID, kind core.Kind, parent ...core.PostID) core.Post {
	p := core.Post{
		ID:        id,
		Kind:      kind,
		Author:    core.Author{Username: "alice"},
		CreatedAt: epoch.Add(time.Duration(id) * time.Minute),
	}
	if len(parent) > 0 {
		p.Parent = lo.ToPtr(parent[0])
	}
	return p
}

// fakeAPI serves posts from memory. A gate, when set, blocks GetPost until it is closed.
type fakeAPI struct {
	mu    sync.Mutex
	posts map[core.PostID]core.Post
	gets  map[core.PostID]int
	gate  chan struct{}

	list    func(core.PostQuery) ([]core.Post, error)
	liked   []core.Post
	failing error

	likeResult core.LikeResult
	repost     core.Post
	calls      []string
}

func newAPI(posts ...core.Post) *fakeAPI {
	return &fakeAPI{
		posts: lo.KeyBy(posts, func(p core.Post) core.PostID { return p.ID }),
		gets:  map[core.PostID]int{},
	}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.failing
}

func (f *fakeAPI) getCount(id core.PostID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[id]
}

func (f *fakeAPI) GetPost(ctx context.Context, id core.PostID) (core.Post, error) {
	f.mu.Lock()
	f.gets[id]++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return core.Post{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.posts[id]
	if !ok {
		return core.Post{}, fmt.Errorf("%w: %d", core.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeAPI) ListPosts(_ context.Context, query core.PostQuery) ([]core.Post, error) {
	return f.list(query)
}

func (f *fakeAPI) LikedPosts(context.Context) ([]core.Post, error) {
	return f.liked, nil
}

func (f *fakeAPI) CreatePost(_ context.Context, description string) (core.Post, error) {
	p := post(100, core.KindPost)
	p.Description = description
	return p, f.record("create")
}

func (f *fakeAPI) Reply(_ context.Context, id core.PostID, description string) (core.Post, error) {
	p := post(101, core.KindReply, id)
	p.Description = description
	return p, f.record("reply")
}

func (f *fakeAPI) Quote(_ context.Context, id core.PostID, description string) (core.Post, error) {
	p := post(102, core.KindQuote, id)
	p.Description = description
	return p, f.record("quote")
}

func (f *fakeAPI) Like(context.Context, core.PostID) (core.LikeResult, error) {
	return f.likeResult, f.record("like")
}

func (f *fakeAPI) Unlike(context.Context, core.PostID) (core.LikeResult, error) {
	return f.likeResult, f.record("unlike")
}

func (f *fakeAPI) Repost(context.Context, core.PostID) (core.Post, error) {
	return f.repost, f.record("repost")
}

func (f *fakeAPI) Unrepost(context.Context, core.PostID) error {
	return f.record("unrepost")
}

func (f *fakeAPI) DeletePost(context.Context, core.PostID) error {
	return f.record("delete")
}
