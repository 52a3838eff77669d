package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// ConnectionServer takes ownership of upgraded WebSocket connections.
type ConnectionServer interface {
	Serve(conn *websocket.Conn)
}

type WSHandler struct {
	upgrader websocket.Upgrader
	hub      ConnectionServer
	logger   *slog.Logger
}

func NewWSHandler(hub ConnectionServer, policy OriginPolicy, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return policy.Allows(r.Header.Get("Origin"))
			},
		},
		hub:    hub,
		logger: logger,
	}
}

// Upgrade handles GET /ws
func (h *WSHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	h.hub.Serve(conn)
}
