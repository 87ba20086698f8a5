package cmd

import (
	"bufio"
	"context"
	"os"

	"feedsync/internal/cmd/flags"
	"feedsync/internal/search"

	"github.com/k0kubun/pp"
	"github.com/urfave/cli/v3"
)

var searchCmd = &cli.Command{
	Name:  "search",
	Usage: "Search profiles, one query per line read from stdin",
	Flags: append([]cli.Flag{flags.SearchDebounce}, flags.API...),
	Action: func(ctx context.Context, c *cli.Command) error {
		return runTask(ctx, c, func(ctx context.Context, f *feed) error {
			s := search.New(f.api, f.Config.SearchDelay, f.Logger)
			defer s.Close()

			s.OnResults = func(r search.Results) {
				if r.Err != nil {
					f.Logger.Error("search failed", "query", r.Query, "error", r.Err)
					return
				}
				pp.Println(r.Query, r.Profiles)
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						// Stdin is closed, apply the last query before Close drops it.
						if err := s.Flush(ctx); err != nil {
							f.Logger.Debug("search flush interrupted", "error", err)
						}
						return nil
					}
					s.Query(line)
				}
			}
		})
	},
}
