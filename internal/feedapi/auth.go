package feedapi

import (
	"context"
	"errors"
)

const refreshPath = "/token/refresh/"

// RefreshToken exchanges a refresh token for a new access token. It never goes through
// the 401 retry path.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	var tokens struct {
		Access string `json:"access"`
	}

	res, err := c.r(ctx).
		SetBody(map[string]string{"refresh": refresh}).
		SetResult(&tokens).
		Post(refreshPath)
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", responseError(res)
	}
	if tokens.Access == "" {
		return "", errors.New("token refresh returned no access token")
	}

	return tokens.Access, nil
}
