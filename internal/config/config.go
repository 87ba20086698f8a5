package config

import "time"

type Config struct {
	APIURL      string        `flag:"api-url"`
	RealtimeURL string        `flag:"ws-url"`
	NATSURL     string        `flag:"nats-url"`
	NATSInit    bool          `flag:"nats-init"`
	NATSBucket  string        `flag:"nats-bucket"`
	LogLevel    string        `flag:"log-level"`
	MetricsAddr string        `flag:"metrics-addr"`
	LoadWorkers int           `flag:"load-workers"`
	StatsEvery  time.Duration `flag:"stats-interval"`
	SearchDelay time.Duration `flag:"search-debounce"`
}
