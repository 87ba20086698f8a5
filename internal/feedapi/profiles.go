package feedapi

import (
	"context"
	"net/url"

	"feedsync/internal/core"

	"resty.dev/v3"
)

const (
	profilesPath = "/profile/"
	mePath       = "/profile/me/"
)

func (c *Client) Profile(ctx context.Context, username string) (core.Profile, error) {
	return c.profile(ctx, profilesPath+url.PathEscape(username)+"/")
}

func (c *Client) Me(ctx context.Context) (core.Profile, error) {
	return c.profile(ctx, mePath)
}

// SearchProfiles returns the first page of profiles matching query.
func (c *Client) SearchProfiles(ctx context.Context, query string) ([]core.Profile, error) {
	return collect[core.Profile](ctx, c, profilesPath, 1, func(r *resty.Request) {
		r.SetQueryParam("search", query)
	})
}

func (c *Client) profile(ctx context.Context, path string) (core.Profile, error) {
	var profile core.Profile

	_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&profile).Get(path)
	})

	return profile, err
}
