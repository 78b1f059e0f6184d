// Package realtime pushes streak snapshots to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scottdixon-github/App-Garden/internal/cache"
	"github.com/scottdixon-github/App-Garden/internal/domain"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many snapshots may wait for a slow client before it is dropped.
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SnapshotSource supplies the snapshot sent to a client right after it connects.
type SnapshotSource func(ctx context.Context) (domain.Snapshot, error)

// client is one websocket connection. Only its write pump writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
	// sent is set once a broadcast has been queued; guarded by Hub.mu.
	sent bool
}

// Hub tracks open websocket connections and broadcasts snapshots to all of them.
// Broadcasting only queues messages, so a slow client never holds up publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	initial SnapshotSource
	logger  *zap.Logger
}

// NewHub constructs a Hub. initial may be nil.
func NewHub(initial SnapshotSource, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		initial: initial,
		logger:  logger,
	}
}

// HandleWebSocket upgrades the request and keeps the connection registered until
// the client goes away. The client is registered before the initial snapshot is
// computed, and the initial snapshot is skipped when a broadcast got there first.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go h.writePump(c)

	if h.initial != nil {
		if data, err := h.initialSnapshot(r.Context()); err != nil {
			h.logger.Warn("initial snapshot failed", zap.Error(err))
		} else {
			h.mu.Lock()
			if _, ok := h.clients[c]; ok && !c.sent {
				h.enqueueLocked(c, data)
			}
			h.mu.Unlock()
		}
	}

	go func() {
		defer h.unregister(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) initialSnapshot(ctx context.Context) ([]byte, error) {
	snap, err := h.initial(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snap)
}

// Publish implements domain.SnapshotNotifier. Clients whose queue is full are dropped.
func (h *Hub) Publish(_ context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// Bridge forwards snapshots published on a redis channel to local clients until
// ctx is done.
func (h *Hub) Bridge(ctx context.Context, rdb redis.UniversalClient, channel string) error {
	return cache.Subscribe(ctx, rdb, channel, h.logger, func(snap domain.Snapshot) {
		_ = h.Publish(ctx, snap)
	})
}

// Count reports the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket connected", zap.Int("connections", len(h.clients)))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.removeLocked(c)
	h.logger.Debug("websocket disconnected", zap.Int("connections", len(h.clients)))
}

// removeLocked forgets c and closes its queue, which makes its write pump say
// goodbye and close the connection.
func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.sent = true
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("dropping slow websocket client")
		h.removeLocked(c)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
			h.unregister(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}
