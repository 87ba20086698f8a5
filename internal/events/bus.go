package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
)

var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_events_dispatched_total",
		Help: "The total number of dispatched realtime events",
	}, []string{"type"})

	listenerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_event_listener_failures_total",
		Help: "The total number of listener errors and panics",
	}, []string{"type"})
)

// Envelope is the wire format of the realtime channel.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

type listener struct {
	fn      func(context.Context, any) error
	removed atomic.Bool
}

// Bus maps an event type to its listeners. Dispatch is synchronous and runs listeners in
// registration order; a failing listener never prevents the following ones from running.
type Bus struct {
	Logger *slog.Logger

	mu        sync.Mutex
	listeners map[Type][]*listener
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		Logger:    logger.With("component", "events.Bus"),
		listeners: map[Type][]*listener{},
	}
}

// Subscribe registers fn for the topic. The returned function removes it; calling it from
// inside a dispatch is safe and the listener is not called again.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(context.Context, T) error) func() {
	l := &listener{
		fn: func(ctx context.Context, payload any) error {
			return fn(ctx, payload.(T))
		},
	}

	b.mu.Lock()
	b.listeners[topic.name] = append(b.listeners[topic.name], l)
	b.mu.Unlock()

	return func() {
		l.removed.Store(true)

		b.mu.Lock()
		defer b.mu.Unlock()

		current := b.listeners[topic.name]
		for i, item := range current {
			if item == l {
				// Build a new slice, a running dispatch may hold the old one.
				next := make([]*listener, 0, len(current)-1)
				next = append(next, current[:i]...)
				b.listeners[topic.name] = append(next, current[i+1:]...)
				return
			}
		}
	}
}

// Publish dispatches a typed payload produced locally.
func Publish[T any](ctx context.Context, b *Bus, topic Topic[T], payload T) {
	b.dispatch(ctx, topic.name, payload)
}

// Dispatch decodes an envelope with its topic and dispatches it. Unknown types and
// payloads failing validation are returned as errors and nothing is dispatched.
func (b *Bus) Dispatch(ctx context.Context, envelope Envelope) error {
	d, ok := registry[envelope.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Type)
	}

	payload, err := d.decode(envelope.Data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, envelope.Type, err)
	}

	b.dispatch(ctx, envelope.Type, payload)
	return nil
}

// DispatchRaw parses a raw frame and dispatches it.
func (b *Bus) DispatchRaw(ctx context.Context, frame []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if envelope.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}
	return b.Dispatch(ctx, envelope)
}

// Listeners returns the number of listeners registered for a type.
func (b *Bus) Listeners(t Type) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[t])
}

func (b *Bus) dispatch(ctx context.Context, t Type, payload any) {
	b.mu.Lock()
	snapshot := b.listeners[t]
	b.mu.Unlock()

	eventsDispatched.WithLabelValues(string(t)).Inc()

	for _, l := range snapshot {
		if l.removed.Load() {
			continue
		}
		if err := b.call(ctx, l, payload); err != nil {
			listenerFailures.WithLabelValues(string(t)).Inc()
			b.Logger.Error("event listener failed", "type", t, "error", err)
		}
	}
}

func (b *Bus) call(ctx context.Context, l *listener, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.fn(ctx, payload)
}
