package feedapi

import (
	"time"

	"feedsync/internal/core"

	"resty.dev/v3"
)

type ClientConfig struct {
	// BaseURL is the API root, e.g. https://example.com/api
	BaseURL string
	// Tokens is optional; without it requests are sent anonymously.
	Tokens core.TokenSource

	TransportSettings *resty.TransportSettings

	ResponseMiddlewares []resty.ResponseMiddleware
	RequestMiddlewares  []resty.RequestMiddleware
}

var DefaultTransportSettings = &resty.TransportSettings{
	DialerTimeout:         5 * time.Second,
	DialerKeepAlive:       30 * time.Second,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   5 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
}
