package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"feedsync/internal/core"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedsync_realtime_frames_total",
		Help: "The total number of frames read from the realtime channel",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedsync_realtime_frames_dropped_total",
		Help: "The total number of realtime frames dropped as malformed or unknown",
	})

	connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedsync_realtime_connected",
		Help: "1 while the realtime channel is connected",
	})
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Dispatcher receives every frame read from the channel.
type Dispatcher interface {
	DispatchRaw(ctx context.Context, frame []byte) error
}

// Conn is one session's duplex channel. It does not reconnect: Run returns when the
// connection ends and the caller decides whether to run it again.
type Conn struct {
	Logger     *slog.Logger
	URL        string
	Tokens     core.TokenSource
	Dispatcher Dispatcher
	Dialer     *websocket.Dialer

	state atomic.Int32

	mu       sync.Mutex
	watchers []func(State)
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// OnStateChange registers fn to be called on every transition.
func (c *Conn) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Run connects and reads frames until the connection fails or ctx is done. A cancelled
// context is not an error.
func (c *Conn) Run(ctx context.Context) error {
	if c.State() != Disconnected {
		return errors.New("realtime connection is already running")
	}

	logger := c.logger()

	c.setState(Connecting)
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(Disconnected)
		return err
	}
	defer conn.Close()

	c.setState(Connected)
	defer c.setState(Disconnected)

	logger.Info("connected", "url", c.URL)

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime read: %w", err)
		}

		framesReceived.Inc()

		err = c.Dispatcher.DispatchRaw(ctx, frame)
		if err != nil {
			framesDropped.Inc()
			logger.Warn("dropping realtime frame", "error", err)
			continue
		}
	}
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}

	if c.Tokens != nil {
		token, err := c.Tokens.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("realtime dial: %w", core.ErrUnauthorized)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	return conn, nil
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))

	if s == Connected {
		connected.Set(1)
	} else {
		connected.Set(0)
	}

	c.mu.Lock()
	watchers := append([]func(State){}, c.watchers...)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}

func (c *Conn) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default().With("component", "realtime.Conn")
	}
	return c.Logger.With("component", "realtime.Conn")
}
