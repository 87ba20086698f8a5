package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"feedsync/internal/core"
	"feedsync/internal/events"
	"feedsync/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) { return string(s), nil }
func (s staticTokens) Refresh(context.Context) (string, error)     { return string(s), nil }

func serve(t *testing.T, frames []string, hold bool) (*httptest.Server, <-chan string) {
	t.Helper()

	auth := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}

		if hold {
			// Block until the client goes away.
			_, _, _ = conn.ReadMessage()
		}
	}))
	t.Cleanup(server.Close)

	return server, auth
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_MalformedFramesDoNotStopTheReader(t *testing.T) {
	t.Parallel()

	server, auth := serve(t, []string{
		`not json`,
		`{"type":"story_create","data":{}}`,
		`{"type":"post_create","data":{"id":"x"}}`,
		`{"type":"post_create","data":{"id":1,"type":"post","description":"hello"}}`,
		`{"type":"post_delete","data":{"id":1}}`,
	}, false)

	bus := events.NewBus(nil)

	var mu sync.Mutex
	var seen []string
	events.Subscribe(bus, events.PostCreated, func(_ context.Context, p core.Post) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "create "+p.Description)
		return nil
	})
	events.Subscribe(bus, events.PostDeleted, func(context.Context, events.PostDelete) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "delete")
		return nil
	})

	conn := &realtime.Conn{
		URL:        wsURL(server),
		Tokens:     staticTokens("secret"),
		Dispatcher: bus,
	}

	var states []realtime.State
	conn.OnStateChange(func(s realtime.State) {
		states = append(states, s)
	})

	err := conn.Run(t.Context())

	require.Error(t, err)
	require.Equal(t, "Bearer secret", <-auth)
	require.Equal(t, []string{"create hello", "delete"}, seen)
	require.Equal(t, []realtime.State{realtime.Connecting, realtime.Connected, realtime.Disconnected}, states)
	require.Equal(t, realtime.Disconnected, conn.State())
}

func TestConn_CancelledContextStopsCleanly(t *testing.T) {
	t.Parallel()

	server, _ := serve(t, nil, true)

	conn := &realtime.Conn{
		URL:        wsURL(server),
		Dispatcher: events.NewBus(nil),
	}

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() {
		done <- conn.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return conn.State() == realtime.Connected
	}, 5*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	require.Equal(t, realtime.Disconnected, conn.State())
}

func TestConn_DialFailureReturnsToDisconnected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	conn := &realtime.Conn{
		URL:        wsURL(server),
		Dispatcher: events.NewBus(nil),
	}

	err := conn.Run(t.Context())

	require.ErrorIs(t, err, core.ErrUnauthorized)
	require.Equal(t, realtime.Disconnected, conn.State())
}
