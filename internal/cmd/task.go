package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"feedsync/internal/core"
	"feedsync/internal/nats"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"
)

// task runs a single operation against the session, then the application stops.
type task struct {
	Feed *feed

	fn func(ctx context.Context, f *feed) error
}

func (t *task) Run(ctx context.Context) error {
	return t.fn(ctx, t.Feed)
}

func runTask(ctx context.Context, c *cli.Command, fn func(ctx context.Context, f *feed) error) error {
	return run(ctx, c,
		nats.Provide(),
		pal.Provide(&feed{}),
		pal.Provide(&task{fn: fn}),
	)
}

func postIDArg(c *cli.Command, n int) (core.PostID, error) {
	raw := c.Args().Get(n)
	if raw == "" {
		return 0, errors.New("missing post id argument")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id: %q", raw)
	}
	return core.PostID(id), nil
}

func stringArg(c *cli.Command, n int, name string) (string, error) {
	raw := c.Args().Get(n)
	if raw == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return raw, nil
}
