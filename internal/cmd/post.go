package cmd

import (
	"context"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/core"
	"feedsync/internal/syncer"
	"feedsync/internal/view"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"
)

var postCmd = &cli.Command{
	Name:  "post",
	Usage: "Write posts and interact with them",
	Flags: flags.API,
	Commands: []*cli.Command{
		interactionCmd("like", "Like a post", (*syncer.Interactions).Like),
		interactionCmd("unlike", "Remove a like", (*syncer.Interactions).Unlike),
		interactionCmd("repost", "Repost a post", (*syncer.Interactions).Repost),
		interactionCmd("unrepost", "Remove a repost", (*syncer.Interactions).Unrepost),
		interactionCmd("delete", "Delete one of your posts", (*syncer.Interactions).Delete),
		{
			Name:      "publish",
			Usage:     "Publish a new post",
			ArgsUsage: "<text>",
			Action: func(ctx context.Context, c *cli.Command) error {
				text, err := stringArg(c, 0, "text")
				if err != nil {
					return err
				}
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					return printCreated(f.interactions.Publish(ctx, text))
				})
			},
		},
		{
			Name:      "reply",
			Usage:     "Reply to a post",
			ArgsUsage: "<id> <text>",
			Action: func(ctx context.Context, c *cli.Command) error {
				id, err := postIDArg(c, 0)
				if err != nil {
					return err
				}
				text, err := stringArg(c, 1, "text")
				if err != nil {
					return err
				}
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					return printCreated(f.interactions.Reply(ctx, id, text))
				})
			},
		},
		{
			Name:      "quote",
			Usage:     "Quote a post",
			ArgsUsage: "<id> <text>",
			Action: func(ctx context.Context, c *cli.Command) error {
				id, err := postIDArg(c, 0)
				if err != nil {
					return err
				}
				text, err := stringArg(c, 1, "text")
				if err != nil {
					return err
				}
				return runTask(ctx, c, func(ctx context.Context, f *feed) error {
					return printCreated(f.interactions.Quote(ctx, id, text))
				})
			},
		},
	},
}

// interactionCmd loads the post and prints its projection after the interaction.
func interactionCmd(name, usage string, fn func(*syncer.Interactions, context.Context, core.PostID) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
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
				if err := fn(f.interactions, ctx, id); err != nil {
					return err
				}

				item, ok := view.Project(f.engine.State(), id)
				if !ok {
					pp.Println("removed", id)
					return nil
				}
				pp.Println(item)
				return nil
			})
		},
	}
}

func printCreated(post core.Post, err error) error {
	if err != nil {
		return err
	}
	_, err = pp.Println(post)
	return err
}
