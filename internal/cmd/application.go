package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/config"
	"feedsync/internal/core"
	"feedsync/pkg/clicfg"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"
)

const (
	VERSION = "0.1.0"
	appName = "feedsync"
)

// Exit codes, scripts wrapping the cli tell a lost session from other failures.
const (
	exitFailure      = 1
	exitUnauthorized = 2
	exitNotFound     = 3
)

var cmd = &cli.Command{
	Name:    appName,
	Usage:   "feedsync keeps a local copy of a social feed in sync with its server",
	Version: VERSION,
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		if err := initLogger(c.String("log-level"), c.String("log-format")); err != nil {
			return ctx, err
		}
		return ctx, nil
	},
	Flags: []cli.Flag{
		flags.LogLevel,
		flags.LogFormat,
	},
	Commands: []*cli.Command{
		watchCmd,
		showCmd,
		postCmd,
		searchCmd,
		sessionCmd,
	},
}

func Run() {
	err := cmd.Run(context.Background(), os.Args)
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errSessionExpired), errors.Is(err, core.ErrUnauthorized):
		return exitUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return exitNotFound
	default:
		return exitFailure
	}
}

func describe(err error) string {
	if exitCode(err) == exitUnauthorized {
		return fmt.Sprintf("%s, run `%s session login` to sign in again", err, appName)
	}
	return err.Error()
}

// run starts the services of one command. Commands that do not stream, keep short init
// and shutdown deadlines; the realtime watcher gets the longer ones.
func run(ctx context.Context, c *cli.Command, services ...pal.ServiceDef) error {
	cfg := config.Config{}
	if err := clicfg.ParseFlags(c, &cfg); err != nil {
		return err
	}
	services = append(services, pal.Provide(&cfg))

	initTimeout, shutdownTimeout := 5*time.Second, 2*time.Second
	if c.Name == "watch" {
		initTimeout, shutdownTimeout = 10*time.Second, 10*time.Second
	}

	return pal.New(services...).
		InjectSlog().
		InitTimeout(initTimeout).
		HealthCheckTimeout(1*time.Second).
		ShutdownTimeout(shutdownTimeout).
		Run(ctx, syscall.SIGINT, syscall.SIGTERM)
}
