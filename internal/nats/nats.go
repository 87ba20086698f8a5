package nats

import (
	"context"
	"log/slog"

	"feedsync/internal/config"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	appName = "feedsync"
)

// NATS owns the connection to the server holding the session bucket.
type NATS struct {
	Logger *slog.Logger
	Config *config.Config

	JS jetstream.JetStream
}

func (n *NATS) Init(ctx context.Context) error {
	n.Logger = n.Logger.With("component", "nats.NATS")

	nc, err := libnats.Connect(n.Config.NATSURL, libnats.Name(appName))
	if err != nil {
		return err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	n.JS = js

	if n.Config.NATSInit {
		return n.initNATS(ctx)
	}

	return nil
}

func (n *NATS) HealthCheck(context.Context) error {
	_, err := n.JS.Conn().RTT()
	return err
}

func (n *NATS) Shutdown(context.Context) error {
	return n.JS.Conn().Drain()
}

func (n *NATS) Bucket() string {
	if n.Config.NATSBucket == "" {
		return appName
	}
	return n.Config.NATSBucket
}

func (n *NATS) initNATS(ctx context.Context) error {
	n.Logger.Info("Initializing NATS")

	_, err := n.JS.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      n.Bucket(),
		Description: "feedsync session tokens and identity",
		History:     1,
	})
	if err != nil {
		return err
	}
	n.Logger.Info("KeyValue created or updated", "name", n.Bucket())

	return nil
}
