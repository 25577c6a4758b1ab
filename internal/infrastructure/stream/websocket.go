package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	clientBuffer = 64
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketBroadcaster fans buy events out to connected websocket clients.
// A client whose buffer is full is disconnected rather than slowing the others.
type WebSocketBroadcaster struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	upgrader websocket.Upgrader
	logger   port.Logger
	metrics  *metrics.Metrics
}

func NewWebSocketBroadcaster(l port.Logger, m *metrics.Metrics) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		clients:  make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   l,
		metrics:  metrics.OrNop(m),
	}
}

func (b *WebSocketBroadcaster) Name() string { return "websocket" }

// PublishEvent queues event as JSON for every client.
func (b *WebSocketBroadcaster) PublishEvent(_ context.Context, event entity.BuyEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- msg:
		default:
			b.logger.Warn("Websocket client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			b.removeLocked(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (b *WebSocketBroadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler upgrades requests to websocket connections that receive every buy event.
func (b *WebSocketBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("Websocket upgrade error", "error", err)
			return
		}
		c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
		b.mu.Lock()
		b.clients[c] = struct{}{}
		b.metrics.StreamClients.Set(float64(len(b.clients)))
		b.mu.Unlock()

		go b.writeLoop(c)
		go b.readLoop(c)
	}
}

// Close disconnects every client.
func (b *WebSocketBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		b.removeLocked(c)
	}
}

func (b *WebSocketBroadcaster) removeLocked(c *wsClient) {
	if _, ok := b.clients[c]; !ok {
		return
	}
	delete(b.clients, c)
	close(c.send)
	b.metrics.StreamClients.Set(float64(len(b.clients)))
}

func (b *WebSocketBroadcaster) remove(c *wsClient) {
	b.mu.Lock()
	b.removeLocked(c)
	b.mu.Unlock()
}

// readLoop discards client input and notices disconnects.
func (b *WebSocketBroadcaster) readLoop(c *wsClient) {
	defer b.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *WebSocketBroadcaster) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.remove(c)
				return
			}
		}
	}
}

var _ port.EventSink = (*WebSocketBroadcaster)(nil)
