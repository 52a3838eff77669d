package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointflow/pointflow/internal/models"
	"github.com/pointflow/pointflow/internal/sessions"
)

// SessionHandler serves the public, read-only view of a session.
type SessionHandler struct {
	store *sessions.Store
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *sessions.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// Preview handles GET /api/sessions/{code}. It lets the join page check a
// code before opening a socket and never exposes stories or votes.
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	sess, err := h.store.GetByCode(code)
	if err != nil {
		writeCodedError(w, http.StatusNotFound, "session not found", models.ErrCodeSessionNotFound)
		return
	}
	if sess.Status == models.SessionStatusCompleted {
		writeCodedError(w, http.StatusGone, "session has ended", models.ErrCodeSessionEnded)
		return
	}

	writeJSON(w, http.StatusOK, models.SessionPreview{
		ID:               sess.ID,
		Code:             sess.Code,
		Name:             sess.Name,
		Status:           sess.Status,
		ParticipantCount: len(sess.Participants),
	})
}
