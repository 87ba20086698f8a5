package feedapi

import (
	"context"

	"feedsync/internal/core"

	"resty.dev/v3"
)

const (
	notificationsPath = "/notifications/"
	markReadPath      = "/notifications/mark-read/"
)

func (c *Client) Notifications(ctx context.Context) ([]core.Notification, error) {
	return collect[core.Notification](ctx, c, notificationsPath, 0, nil)
}

func (c *Client) MarkNotificationsRead(ctx context.Context) error {
	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Post(markReadPath)
	})
	return err
}
