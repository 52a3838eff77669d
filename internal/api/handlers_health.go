package api

import (
	"net/http"
	"time"

	"github.com/pointflow/pointflow/internal/models"
)

// SessionCounter reports how many sessions the store holds.
type SessionCounter interface {
	Count() int
}

// ConnectionCounter reports how many WebSocket clients are open.
type ConnectionCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	sessions    SessionCounter
	connections ConnectionCounter
	now         func() time.Time
}

func NewHealthHandler(sessions SessionCounter, connections ConnectionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions, connections: connections, now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Count()
	}
	if h.connections != nil {
		resp.Connections = h.connections.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
