package feedapi

import (
	"context"

	"resty.dev/v3"
)

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// collect follows next links until the last page or maxPages pages were read. A
// non-positive maxPages reads every page.
func collect[T any](ctx context.Context, c *Client, path string, maxPages int, prepare func(*resty.Request)) ([]T, error) {
	var items []T

	next := path
	for pages := 0; next != "" && (maxPages <= 0 || pages < maxPages); pages++ {
		page := &Page[T]{}
		first := pages == 0
		target := next

		_, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
			// The next link already carries the query.
			if first && prepare != nil {
				prepare(r)
			}
			return r.SetResult(page).Get(target)
		})
		if err != nil {
			return nil, err
		}

		items = append(items, page.Results...)

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
	}

	return items, nil
}
