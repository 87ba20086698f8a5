package feedapi

import (
	"context"
	"fmt"
	"strconv"

	"feedsync/internal/core"

	"resty.dev/v3"
)

const (
	postsPath      = "/posts/"
	likedPostsPath = "/posts/liked/"
)

func postPath(id core.PostID, action string) string {
	if action == "" {
		return fmt.Sprintf("/posts/%d/", id)
	}
	return fmt.Sprintf("/posts/%d/%s/", id, action)
}

type newPost struct {
	Description string `json:"description"`
}

func (c *Client) GetPost(ctx context.Context, id core.PostID) (core.Post, error) {
	var post core.Post

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&post).Get(postPath(id, ""))
	})

	return post, err
}

// ListPosts reads the posts list endpoint filtered by query.
func (c *Client) ListPosts(ctx context.Context, query core.PostQuery) ([]core.Post, error) {
	return collect[core.Post](ctx, c, postsPath, query.MaxPages, func(r *resty.Request) {
		if query.Type != "" {
			r.SetQueryParam("type", string(query.Type))
		}
		if query.Parent != nil {
			r.SetQueryParam("parent", strconv.FormatInt(int64(*query.Parent), 10))
		}
		if query.Author != "" {
			r.SetQueryParam("author__username", query.Author)
		}
	})
}

func (c *Client) LikedPosts(ctx context.Context) ([]core.Post, error) {
	return collect[core.Post](ctx, c, likedPostsPath, 0, nil)
}

func (c *Client) CreatePost(ctx context.Context, description string) (core.Post, error) {
	return c.postBody(ctx, postsPath, description)
}

func (c *Client) Reply(ctx context.Context, id core.PostID, description string) (core.Post, error) {
	return c.postBody(ctx, postPath(id, "reply"), description)
}

func (c *Client) Quote(ctx context.Context, id core.PostID, description string) (core.Post, error) {
	return c.postBody(ctx, postPath(id, "quote"), description)
}

// Repost returns the created repost record.
func (c *Client) Repost(ctx context.Context, id core.PostID) (core.Post, error) {
	var post core.Post

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&post).Post(postPath(id, "repost"))
	})

	return post, err
}

func (c *Client) Unrepost(ctx context.Context, id core.PostID) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(postPath(id, "repost"))
	})
	return err
}

func (c *Client) Like(ctx context.Context, id core.PostID) (core.LikeResult, error) {
	return c.like(ctx, id, resty.MethodPost)
}

func (c *Client) Unlike(ctx context.Context, id core.PostID) (core.LikeResult, error) {
	return c.like(ctx, id, resty.MethodDelete)
}

func (c *Client) DeletePost(ctx context.Context, id core.PostID) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(postPath(id, ""))
	})
	return err
}

func (c *Client) like(ctx context.Context, id core.PostID, method string) (core.LikeResult, error) {
	var result core.LikeResult

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&result).Execute(method, postPath(id, "like"))
	})

	return result, err
}

func (c *Client) postBody(ctx context.Context, path string, description string) (core.Post, error) {
	var post core.Post

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(newPost{Description: description}).SetResult(&post).Post(path)
	})

	return post, err
}
