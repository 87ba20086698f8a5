package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-cz/devslog"
	"github.com/mattn/go-isatty"
)

var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
)

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
}

// newLogger builds the application logger. Every record carries the app name and version
// so logs of concurrent commands can be told apart.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level: parsedLevel,
	}

	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "pretty"
		}
	}

	var handler slog.Handler
	switch format {
	case "pretty":
		handler = devslog.NewHandler(w, &devslog.Options{
			HandlerOptions: opts,
		})
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidLogFormat, format)
	}

	return slog.New(handler).With("app", appName, "version", VERSION), nil
}

func initLogger(level, format string) error {
	logger, err := newLogger(os.Stdout, level, format)
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	return nil
}
