package feedapi

import (
	"context"
	"fmt"

	"feedsync/internal/core"

	"resty.dev/v3"
)

const (
	friendRequestsPath = "/friend-requests/"
	friendsPath        = "/friend-requests/friends/"
)

func (c *Client) FriendRequests(ctx context.Context) ([]core.FriendRequest, error) {
	return collect[core.FriendRequest](ctx, c, friendRequestsPath, 0, nil)
}

func (c *Client) Friends(ctx context.Context) ([]core.Profile, error) {
	return collect[core.Profile](ctx, c, friendsPath, 0, nil)
}

func (c *Client) SendFriendRequest(ctx context.Context, username string) (core.FriendRequest, error) {
	var request core.FriendRequest

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(map[string]string{"to_user": username}).
			SetResult(&request).
			Post(friendRequestsPath)
	})

	return request, err
}

func (c *Client) AcceptFriendRequest(ctx context.Context, id int64) error {
	return c.answerFriendRequest(ctx, id, "accept")
}

func (c *Client) RejectFriendRequest(ctx context.Context, id int64) error {
	return c.answerFriendRequest(ctx, id, "reject")
}

func (c *Client) CancelFriendRequest(ctx context.Context, id int64) error {
	return c.answerFriendRequest(ctx, id, "cancel")
}

func (c *Client) answerFriendRequest(ctx context.Context, id int64, action string) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Post(fmt.Sprintf("%s%d/%s/", friendRequestsPath, id, action))
	})
	return err
}
