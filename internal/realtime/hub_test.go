package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) domain.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var snap domain.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func TestHubSendsInitialSnapshotThenBroadcasts(t *testing.T) {
	initial := domain.Snapshot{CurrentStreak: 1, TotalSessions: 1}
	hub := NewHub(func(context.Context) (domain.Snapshot, error) { return initial, nil }, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	require.Equal(t, initial, readSnapshot(t, first))
	require.Equal(t, initial, readSnapshot(t, second))
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	next := domain.Snapshot{CurrentStreak: 2, LongestStreak: 2, TotalSessions: 2}
	require.NoError(t, hub.Publish(context.Background(), next))
	require.Equal(t, next, readSnapshot(t, first))
	require.Equal(t, next, readSnapshot(t, second))
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), domain.Snapshot{}))
}

func TestHubSkipsInitialSnapshotOnError(t *testing.T) {
	hub := NewHub(func(context.Context) (domain.Snapshot, error) { return domain.Snapshot{}, errors.New("offline") }, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	want := domain.Snapshot{TotalMinutes: 45}
	require.NoError(t, hub.Publish(context.Background(), want))
	require.Equal(t, want, readSnapshot(t, conn))
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	require.Zero(t, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHubPrefersBroadcastOverSlowerInitialSnapshot(t *testing.T) {
	computing := make(chan struct{})
	proceed := make(chan struct{})
	stale := domain.Snapshot{TotalSessions: 1}
	hub := NewHub(func(context.Context) (domain.Snapshot, error) {
		close(computing)
		<-proceed
		return stale, nil
	}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	<-computing
	require.Equal(t, 1, hub.Count())

	next := domain.Snapshot{CurrentStreak: 1, TotalSessions: 2}
	require.NoError(t, hub.Publish(context.Background(), next))
	close(proceed)

	require.Equal(t, next, readSnapshot(t, conn))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestHubPublishDropsClientWithFullQueue(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	stuck := &client{send: make(chan []byte, 1)}
	stuck.send <- []byte("{}")
	hub.register(stuck)

	published := make(chan error, 1)
	go func() { published <- hub.Publish(context.Background(), domain.Snapshot{TotalSessions: 3}) }()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a client that is not reading")
	}
	require.Zero(t, hub.Count())
	_, open := <-stuck.send
	require.True(t, open)
	_, open = <-stuck.send
	require.False(t, open)
}
