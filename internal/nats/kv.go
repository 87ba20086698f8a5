package nats

import (
	"context"
	"errors"
	"fmt"

	"feedsync/internal/core"

	"github.com/nats-io/nats.go/jetstream"
)

// KV implements core.KeyValue over the session bucket.
type KV struct {
	NATS *NATS

	kv jetstream.KeyValue
}

func (c *KV) Init(ctx context.Context) error {
	kv, err := c.NATS.JS.KeyValue(ctx, c.NATS.Bucket())
	if err != nil {
		return fmt.Errorf("failed to open bucket %s: %w", c.NATS.Bucket(), err)
	}
	c.kv = kv
	return nil
}

// Get returns core.ErrNotFound for missing keys.
func (c *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
		}
		return nil, err
	}

	return entry.Value(), nil
}

func (c *KV) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.kv.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", key, err)
	}
	return nil
}

// Delete is a no-op for missing keys.
func (c *KV) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}
