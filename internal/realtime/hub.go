package realtime

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/pointflow/pointflow/internal/scales"
	"github.com/pointflow/pointflow/internal/sessions"
)

type inboundFrame struct {
	connID string
	frame  []byte
}

// Hub owns every live WebSocket client and runs all inbound actions, client
// registrations and evictions on one goroutine, one at a time. Broadcasts
// for a session therefore reach every member in mutation order.
type Hub struct {
	router   *Router
	registry *Registry
	clients  map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	evictions  chan []sessions.Evicted
	done       chan struct{}

	// clients whose send queue filled up during the current dispatch
	overflow []*Client
	live     atomic.Int64
	logger   *slog.Logger
}

// NewHub creates a hub and the router it dispatches to.
func NewHub(store *sessions.Store, catalog *scales.Catalog, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		registry:   NewRegistry(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, 256),
		evictions:  make(chan []sessions.Evicted, 16),
		done:       make(chan struct{}),
		logger:     logger,
	}
	h.router = NewRouter(store, h.registry, catalog, h, logger)
	return h
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer h.logger.Info("websocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.live.Store(0)
			close(h.done)
			return

		case c := <-h.register:
			h.clients[c.ID] = c
			h.live.Add(1)
			h.logger.Debug("client registered", "conn", c.ID)

		case c := <-h.unregister:
			if _, ok := h.clients[c.ID]; ok {
				h.dispatch(func() { h.drop(c) })
				h.logger.Debug("client unregistered", "conn", c.ID)
			}

		case in := <-h.inbound:
			h.receive(in)

		case evicted := <-h.evictions:
			h.dispatch(func() { h.router.Evict(evicted) })
		}
	}
}

// receive handles a frame read before its client was dropped only if the
// client is still registered. A late frame must not bind a closed connection.
func (h *Hub) receive(in inboundFrame) {
	if _, ok := h.clients[in.connID]; !ok {
		h.logger.Debug("frame from dropped client ignored", "conn", in.connID)
		return
	}
	h.dispatch(func() { h.router.Handle(in.connID, in.frame) })
}

// dispatch runs fn to completion, then drops every client whose send queue
// overflowed while it ran. A panic is logged and confined to fn.
func (h *Hub) dispatch(fn func()) {
	h.safely(fn)
	for len(h.overflow) > 0 {
		c := h.overflow[0]
		h.overflow = h.overflow[1:]
		if _, ok := h.clients[c.ID]; ok {
			h.logger.Warn("client send queue full, disconnecting", "conn", c.ID)
			h.safely(func() { h.drop(c) })
		}
	}
	h.overflow = h.overflow[:0]
}

func (h *Hub) safely(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic recovered in hub", "error", err)
		}
	}()
	fn()
}

// drop forgets c, closes its queue and releases its session binding.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c.ID)
	h.live.Add(-1)
	close(c.send)
	h.router.Disconnect(c.ID)
}

// Send queues frame for connID. It must only be called from the hub goroutine.
func (h *Hub) Send(connID string, frame []byte) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.overflow = append(h.overflow, c)
	}
}

// Serve takes ownership of an upgraded connection.
func (h *Hub) Serve(conn *websocket.Conn) {
	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

// Evict forwards sweeper evictions to the hub goroutine.
func (h *Hub) Evict(evicted []sessions.Evicted) {
	select {
	case h.evictions <- evicted:
	case <-h.done:
	}
}

func (h *Hub) deliver(connID string, frame []byte) bool {
	select {
	case h.inbound <- inboundFrame{connID: connID, frame: frame}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of open WebSocket connections.
func (h *Hub) ClientCount() int {
	return int(h.live.Load())
}

// BoundCount returns the number of connections attached to a session.
func (h *Hub) BoundCount() int {
	return h.registry.Count()
}
