package cmd

import (
	"context"
	"log/slog"
	"time"

	"feedsync/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zhulik/pal"
)

var storeSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "feedsync_store_size",
	Help: "The number of entries held by the session state.",
}, []string{"kind"})

// collector periodically publishes the size of the session state.
type collector struct {
	Logger *slog.Logger
	Config *config.Config
	Feed   *feed
}

func (c *collector) RunConfig() pal.RunConfig {
	return pal.RunConfig{
		Wait: false,
	}
}

func (c *collector) Run(ctx context.Context) error {
	interval := c.Config.StatsEvery
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *collector) collect() {
	state := c.Feed.engine.State()

	stats := map[string]int{
		"posts":    state.Len(),
		"links":    len(state.Links()),
		"friends":  len(c.Feed.book.Friends()),
		"received": len(c.Feed.book.Received()),
		"unread":   c.Feed.inbox.Unread(),
	}

	args := make([]any, 0, 2*len(stats)+2)
	for kind, n := range stats {
		storeSize.WithLabelValues(kind).Set(float64(n))
		args = append(args, kind, n)
	}
	args = append(args, "context", c.Feed.loader.Current())

	c.Logger.Info("stats", args...)
}
