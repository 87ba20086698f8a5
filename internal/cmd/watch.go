package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/config"
	"feedsync/internal/core"
	"feedsync/internal/metrics"
	"feedsync/internal/nats"
	"feedsync/internal/realtime"
	"feedsync/internal/store"
	"feedsync/internal/view"
	"feedsync/pkg/retry"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"
)

var errSessionExpired = errors.New("session expired")

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "Load the feed and keep it in sync with the realtime channel",
	Flags: append([]cli.Flag{
		flags.WSURL,
		flags.MetricsAddr,
		flags.StatsInterval,
	}, flags.API...),
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			nats.Provide(),
			pal.Provide(&feed{}),
			pal.Provide(&watcher{}),
			pal.Provide(&collector{}),
			pal.Provide(&metrics.Server{}),
		)
	},
}

type watcher struct {
	Logger *slog.Logger
	Config *config.Config
	Feed   *feed
}

func (w *watcher) Init(context.Context) error {
	w.Logger = w.Logger.With("component", "cmd.watcher")
	return nil
}

func (w *watcher) Run(ctx context.Context) error {
	f := w.Feed

	if err := f.loader.Feed(ctx); err != nil {
		return err
	}
	if err := f.book.Load(ctx, f.api); err != nil {
		return err
	}
	if err := f.inbox.Load(ctx, f.api); err != nil {
		return err
	}

	defer f.book.Bind(f.bus)()
	defer f.inbox.Bind(f.bus)()
	defer f.engine.OnNewPost(func(post core.Post) {
		w.Logger.Info("new post", "id", post.ID, "type", post.Kind, "author", post.Author.Username)
	})()

	// Deliveries are serialized, shown is only touched from the subscriber.
	shown := len(view.Feed(f.engine.State()))
	defer f.engine.Subscribe(func(state store.State) {
		items := view.Feed(state)
		if len(items) == shown {
			return
		}
		w.Logger.Info("feed changed", "items", len(items), "delta", len(items)-shown)
		shown = len(items)
	})()

	conn := &realtime.Conn{
		Logger:     w.Logger,
		URL:        w.Config.RealtimeURL,
		Tokens:     f.tokens,
		Dispatcher: f.bus,
	}
	conn.OnStateChange(func(s realtime.State) {
		w.Logger.Debug("realtime state changed", "state", s)
	})

	connected := false
	connect := func(ctx context.Context) error {
		if connected {
			// Events sent while disconnected are lost, reload the view.
			if err := f.loader.Feed(ctx); err != nil {
				return err
			}
		}
		connected = true

		err := conn.Run(ctx)
		if errors.Is(err, core.ErrUnauthorized) {
			if _, refreshErr := f.tokens.Refresh(ctx); refreshErr != nil {
				return fmt.Errorf("%w: %w", errSessionExpired, refreshErr)
			}
		}
		return err
	}

	return retry.WrapWithRetry(connect, func(err error, attempt int) bool {
		if errors.Is(err, errSessionExpired) {
			return false
		}
		w.Logger.Error("error running realtime connection, retrying in 1 second", "error", err, "attempt", attempt)
		return true
	}, 1*time.Second)(ctx)
}
