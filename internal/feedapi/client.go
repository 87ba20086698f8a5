package feedapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"feedsync/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"resty.dev/v3"
)

var (
	apiLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedsync_api_request_latency",
			Help:    "Histogram of feed API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_code"},
	)

	tokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_api_token_refreshes_total",
		Help: "The total number of token refreshes triggered by a 401 response",
	}, []string{"outcome"})
)

// Error is a non-2xx response.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *Error) Is(target error) bool {
	switch target {
	case core.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case core.ErrNotFound:
		return e.Status == http.StatusNotFound
	default:
		return false
	}
}

type Client struct {
	client *resty.Client
	tokens core.TokenSource
}

func NewClient(config *ClientConfig) *Client {
	settings := config.TransportSettings
	if settings == nil {
		settings = DefaultTransportSettings
	}

	client := resty.NewWithTransportSettings(settings).
		SetBaseURL(config.BaseURL).
		SetResponseBodyUnlimitedReads(true).
		AddResponseMiddleware(metricMiddleware)

	for _, m := range config.RequestMiddlewares {
		client.AddRequestMiddleware(m)
	}
	for _, m := range config.ResponseMiddlewares {
		client.AddResponseMiddleware(m)
	}

	return &Client{
		client: client,
		tokens: config.Tokens,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// do sends the request built by send with the current bearer token. A 401 triggers one
// token refresh and one retry; a second 401 is returned to the caller.
func (c *Client) do(ctx context.Context, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	res, err := send(c.authorized(ctx, token))
	if err != nil {
		return nil, err
	}

	if res.StatusCode() == http.StatusUnauthorized && c.tokens != nil {
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			tokenRefreshes.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("%w: refresh failed: %w", core.ErrUnauthorized, err)
		}
		tokenRefreshes.WithLabelValues("refreshed").Inc()

		res, err = send(c.authorized(ctx, token))
		if err != nil {
			return nil, err
		}
	}

	if !res.IsSuccess() {
		return nil, responseError(res)
	}

	return res, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.AccessToken(ctx)
}

func (c *Client) authorized(ctx context.Context, token string) *resty.Request {
	r := c.r(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

func responseError(res *resty.Response) error {
	path := res.Request.URL
	if u, err := url.Parse(res.Request.URL); err == nil {
		path = u.Path
	}

	return &Error{
		Method: res.Request.Method,
		Path:   path,
		Status: res.StatusCode(),
		Body:   res.String(),
	}
}

func metricMiddleware(_ *resty.Client, response *resty.Response) error {
	reqURL, err := url.Parse(response.Request.URL)
	if err != nil {
		return err
	}

	apiLatency.WithLabelValues(
		response.Request.Method,
		reqURL.Path,
		fmt.Sprintf("%d", response.StatusCode()),
	).Observe(response.Duration().Seconds())

	return nil
}

// IsStatus reports whether err is an API error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
