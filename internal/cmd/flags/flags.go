package flags

import (
	"errors"
	"fmt"
	"slices"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validLogFormats = []string{"auto", "json", "pretty"}

var NATSURL = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("NATS_URL"),
}

var NATSInit = &cli.BoolFlag{
	Name:        "nats-init",
	Aliases:     []string{"i"},
	Usage:       "Initialize the NATS server: create the session bucket",
	DefaultText: "false",
	Value:       false,
	Sources:     cli.EnvVars("NATS_INIT"),
}

var NATSBucket = &cli.StringFlag{
	Name:    "nats-bucket",
	Usage:   "The NATS KeyValue bucket holding the session",
	Value:   "feedsync",
	Sources: cli.EnvVars("NATS_BUCKET"),
}

// TODO: extract custom EnumFlag
var LogLevel = &cli.StringFlag{
	Name:    "log-level",
	Aliases: []string{"l"},
	Usage:   "The level of the logs",
	Value:   "info",
	Validator: func(value string) error {
		if !slices.Contains(validLogLevels, value) {
			return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, validLogLevels)
		}
		return nil
	},
	Sources: cli.EnvVars("LOG_LEVEL"),
}

var LogFormat = &cli.StringFlag{
	Name:  "log-format",
	Usage: "The format of the logs, auto picks pretty on a terminal and json otherwise",
	Value: "auto",
	Validator: func(value string) error {
		if !slices.Contains(validLogFormats, value) {
			return fmt.Errorf("invalid log format: %s, allowed values are: %s", value, validLogFormats)
		}
		return nil
	},
	Sources: cli.EnvVars("LOG_FORMAT"),
}

var APIURL = &cli.StringFlag{
	Name:    "api-url",
	Aliases: []string{"a"},
	Usage:   "The base URL of the REST API",
	Value:   "http://localhost:8000/api",
	Sources: cli.EnvVars("FEEDSYNC_API_URL"),
}

var WSURL = &cli.StringFlag{
	Name:    "ws-url",
	Aliases: []string{"w"},
	Usage:   "The URL of the realtime websocket",
	Value:   "ws://localhost:8000/ws/",
	Sources: cli.EnvVars("FEEDSYNC_WS_URL"),
}

var MetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "The address to serve /metrics and /health on, empty to disable",
	Value:   ":8080",
	Sources: cli.EnvVars("METRICS_ADDR"),
}

var LoadWorkers = &cli.IntFlag{
	Name:    "load-workers",
	Usage:   "How many missing parents are fetched concurrently when a view is loaded",
	Value:   8,
	Sources: cli.EnvVars("FEEDSYNC_LOAD_WORKERS"),
	Validator: func(value int) error {
		if value < 1 {
			return errors.New("load-workers must be positive")
		}
		return nil
	},
}

var StatsInterval = &cli.DurationFlag{
	Name:    "stats-interval",
	Usage:   "How often store statistics are logged",
	Value:   30 * time.Second,
	Sources: cli.EnvVars("FEEDSYNC_STATS_INTERVAL"),
}

var SearchDebounce = &cli.DurationFlag{
	Name:    "search-debounce",
	Usage:   "How long a search query must stay unchanged before it is sent",
	Value:   300 * time.Millisecond,
	Sources: cli.EnvVars("FEEDSYNC_SEARCH_DEBOUNCE"),
}

// NATS are the flags of every command that reads the session.
var NATS = []cli.Flag{NATSURL, NATSInit, NATSBucket}

// API are the flags of every command that talks to the REST API.
var API = append([]cli.Flag{APIURL, LoadWorkers}, NATS...)
