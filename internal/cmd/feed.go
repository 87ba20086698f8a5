package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feedsync/internal/config"
	"feedsync/internal/core"
	"feedsync/internal/events"
	"feedsync/internal/feedapi"
	"feedsync/internal/friends"
	"feedsync/internal/notifications"
	"feedsync/internal/session"
	"feedsync/internal/store"
	"feedsync/internal/syncer"
)

var errNoSession = errors.New("not logged in, run `feedsync session login` first")

// feed is one authenticated session: tokens, REST client, the store and everything that
// writes to it. The parts depend on each other in a cycle (tokens refresh through a client,
// the client asks tokens for a bearer), so they are wired here by hand.
type feed struct {
	Logger *slog.Logger
	Config *config.Config
	KV     core.KeyValue

	username string

	auth   *feedapi.Client
	api    *feedapi.Client
	tokens *session.Manager

	engine       *store.Engine
	bus          *events.Bus
	syncer       *syncer.Syncer
	loader       *syncer.Loader
	interactions *syncer.Interactions

	book  *friends.Book
	inbox *notifications.Inbox
}

func (f *feed) Init(ctx context.Context) error {
	f.Logger = f.Logger.With("component", "cmd.feed")

	f.auth = feedapi.NewClient(&feedapi.ClientConfig{BaseURL: f.Config.APIURL})
	f.tokens = &session.Manager{
		Logger:    f.Logger,
		KV:        f.KV,
		Refresher: f.auth,
	}
	f.api = feedapi.NewClient(&feedapi.ClientConfig{
		BaseURL: f.Config.APIURL,
		Tokens:  f.tokens,
	})

	username, err := f.tokens.Username(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return errNoSession
		}
		return fmt.Errorf("reading session: %w", err)
	}
	f.username = username

	f.engine = store.NewEngine(f.Logger)
	f.bus = events.NewBus(f.Logger)

	f.syncer = &syncer.Syncer{
		Logger: f.Logger,
		Bus:    f.bus,
		Engine: f.engine,
		Posts:  f.api,
	}
	if err := f.syncer.Init(ctx); err != nil {
		return err
	}

	f.loader = &syncer.Loader{
		Logger:  f.Logger,
		Engine:  f.engine,
		Posts:   f.api,
		Workers: f.Config.LoadWorkers,
	}
	f.interactions = &syncer.Interactions{
		Logger:   f.Logger,
		Engine:   f.engine,
		API:      f.api,
		Username: username,
	}

	f.book = friends.NewBook(username, f.Logger)
	f.inbox = notifications.NewInbox(f.Logger)

	f.Logger.Info("Session ready", "username", username)

	return nil
}

func (f *feed) Shutdown(ctx context.Context) error {
	var errs []error
	if f.syncer != nil {
		errs = append(errs, f.syncer.Shutdown(ctx))
	}
	if f.api != nil {
		errs = append(errs, f.api.Close())
	}
	if f.auth != nil {
		errs = append(errs, f.auth.Close())
	}
	return errors.Join(errs...)
}
