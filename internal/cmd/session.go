package cmd

import (
	"context"
	"log/slog"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/core"
	"feedsync/internal/nats"
	"feedsync/internal/session"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"
)

var sessionCmd = &cli.Command{
	Name:  "session",
	Usage: "Manage the stored session",
	Flags: flags.NATS,
	Commands: []*cli.Command{
		{
			Name:  "login",
			Usage: "Store the tokens of a session",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "access", Usage: "The access token", Required: true, Sources: cli.EnvVars("FEEDSYNC_ACCESS_TOKEN")},
				&cli.StringFlag{Name: "refresh", Usage: "The refresh token", Required: true, Sources: cli.EnvVars("FEEDSYNC_REFRESH_TOKEN")},
				&cli.StringFlag{Name: "username", Usage: "The username, read from the access token when empty"},
			},
			Action: func(ctx context.Context, c *cli.Command) error {
				creds := session.Credentials{
					Access:   c.String("access"),
					Refresh:  c.String("refresh"),
					Username: c.String("username"),
				}
				return runSessionTask(ctx, c, func(ctx context.Context, m *session.Manager) error {
					if err := m.Save(ctx, creds); err != nil {
						return err
					}
					return printSession(ctx, m)
				})
			},
		},
		{
			Name:  "logout",
			Usage: "Forget the stored session",
			Action: func(ctx context.Context, c *cli.Command) error {
				return runSessionTask(ctx, c, func(ctx context.Context, m *session.Manager) error {
					return m.Clear(ctx)
				})
			},
		},
		{
			Name:  "whoami",
			Usage: "Print the stored identity and token expiry",
			Action: func(ctx context.Context, c *cli.Command) error {
				return runSessionTask(ctx, c, printSession)
			},
		},
	},
}

// sessionTask runs fn against the stored session without touching the API.
type sessionTask struct {
	Logger *slog.Logger
	KV     core.KeyValue

	fn func(ctx context.Context, m *session.Manager) error
}

func (t *sessionTask) Run(ctx context.Context) error {
	return t.fn(ctx, &session.Manager{Logger: t.Logger, KV: t.KV})
}

func runSessionTask(ctx context.Context, c *cli.Command, fn func(ctx context.Context, m *session.Manager) error) error {
	return run(ctx, c,
		nats.Provide(),
		pal.Provide(&sessionTask{fn: fn}),
	)
}

func printSession(ctx context.Context, m *session.Manager) error {
	username, err := m.Username(ctx)
	if err != nil {
		return err
	}
	creds, err := m.Credentials(ctx)
	if err != nil {
		return err
	}

	info := map[string]any{"username": username}
	if exp, ok := session.ExpiresAt(creds.Access); ok {
		info["expires_at"] = exp
	}
	pp.Println(info)
	return nil
}
