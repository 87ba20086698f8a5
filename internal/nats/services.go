package nats

import (
	"feedsync/internal/core"

	"github.com/zhulik/pal"
)

// Provide registers the connection and the session bucket as core.KeyValue.
func Provide() pal.ServiceDef {
	return pal.ProvideList(
		pal.Provide(&NATS{}),
		pal.Provide[core.KeyValue](&KV{}),
	)
}
