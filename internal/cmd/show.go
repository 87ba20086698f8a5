package cmd

import (
	"context"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/core"
	"feedsync/internal/view"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"
)

var showCmd = &cli.Command{
	Name:  "show",
	Usage: "Load a view and print its projection",
	Flags: flags.API,
	Commands: []*cli.Command{
		{
			Name:  "feed",
			Usage: "The home feed",
			Action: func(ctx context.Context, c *cli.Command) error {
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					if err := f.loader.Feed(ctx); err != nil {
						return err
					}
					return printFeed(f)
				})
			},
		},
		{
			Name:      "profile",
			Usage:     "The posts of a user",
			ArgsUsage: "<username>",
			Action: func(ctx context.Context, c *cli.Command) error {
				username, err := stringArg(c, 0, "username")
				if err != nil {
					return err
				}
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					profile, err := f.api.Profile(ctx, username)
					if err != nil {
						return err
					}
					pp.Println(profile)

					if err := f.loader.Profile(ctx, username); err != nil {
						return err
					}
					return printFeed(f)
				})
			},
		},
		{
			Name:      "post",
			Usage:     "A post with its replies",
			ArgsUsage: "<id>",
			Action: func(ctx context.Context, c *cli.Command) error {
				id, err := postIDArg(c, 0)
				if err != nil {
					return err
				}
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					if err := f.loader.Detail(ctx, id); err != nil {
						return err
					}
					thread, ok := view.Detail(f.engine.State(), id)
					if !ok {
						return core.ErrNotFound
					}
					pp.Println(thread)
					return nil
				})
			},
		},
		{
			Name:  "liked",
			Usage: "The posts liked by the current user",
			Action: func(ctx context.Context, c *cli.Command) error {
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					if err := f.loader.Liked(ctx); err != nil {
						return err
					}
					return printFeed(f)
				})
			},
		},
		{
			Name:  "friends",
			Usage: "Friends and pending friend requests",
			Action: func(ctx context.Context, c *cli.Command) error {
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					if err := f.book.Load(ctx, f.api); err != nil {
						return err
					}
					pp.Println(map[string]any{
						"friends":  f.book.Friends(),
						"sent":     f.book.Sent(),
						"received": f.book.Received(),
					})
					return nil
				})
			},
		},
		{
			Name:  "notifications",
			Usage: "Notifications, newest first",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "mark-read", Usage: "Mark all notifications read after printing"},
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				markRead := c.Bool("mark-read")
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					if err := f.inbox.Load(ctx, f.api); err != nil {
						return err
					}
					pp.Println(f.inbox.List())
					pp.Println("unread", f.inbox.Unread())

					if markRead {
						return f.inbox.MarkRead(ctx, f.api)
					}
					return nil
				})
			},
		},
	},
}

func printFeed(f *feed) error {
	_, err := pp.Println(view.Feed(f.engine.State()))
	return err
}
