package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointflow/pointflow/internal/models"
	"github.com/pointflow/pointflow/internal/scales"
	"github.com/pointflow/pointflow/internal/sessions"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(sessions.NewStore(0, discard), scales.NewCatalog(), discard)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func expect(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, event, env.Event, "payload: %s", env.Data)
	return env
}

func TestHubEndToEnd(t *testing.T) {
	hub, srv := startHub(t)

	sm := dial(t, srv)
	emit(t, sm, models.EventCreateSession, models.CreateSessionPayload{
		SessionName: "Sprint", ScrumMasterName: "Alice", SessionType: models.SessionTypeQuick,
	})
	var created models.SessionJoinedPayload
	require.NoError(t, json.Unmarshal(expect(t, sm, models.EventSessionCreated).Data, &created))
	storyID := created.Session.Stories[0].ID

	dev := dial(t, srv)
	emit(t, dev, models.EventJoinSession, models.JoinSessionPayload{
		SessionCode: strings.ToLower(created.Session.Code), ParticipantName: "Bob",
	})
	expect(t, dev, models.EventSessionJoined)
	expect(t, sm, models.EventParticipantJoined)

	emit(t, dev, models.EventSubmitVote, models.SubmitVotePayload{StoryID: storyID, Value: "?"})
	for _, c := range []*websocket.Conn{sm, dev} {
		env := expect(t, c, models.EventVoteReceived)
		assert.NotContains(t, string(env.Data), "?")
	}

	emit(t, sm, models.EventRevealVotes, models.StoryRefPayload{StoryID: storyID})
	for _, c := range []*websocket.Conn{sm, dev} {
		var p models.VotesRevealedPayload
		require.NoError(t, json.Unmarshal(expect(t, c, models.EventVotesRevealed).Data, &p))
		require.Len(t, p.Votes, 1)
		assert.Equal(t, "?", p.Votes[0].Value)
	}

	assert.Equal(t, 2, hub.BoundCount())

	require.NoError(t, dev.Close())
	env := expect(t, sm, models.EventParticipantLeft)
	var left models.ParticipantRefPayload
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.NotEmpty(t, left.ParticipantID)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestHubRejectsMalformedFrame(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var p models.ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, models.EventError).Data, &p))
	assert.Equal(t, models.ErrCodeBadRequest, p.Code)
}

func TestHubEvictionReachesClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	emit(t, conn, models.EventCreateSession, models.CreateSessionPayload{SessionName: "S", ScrumMasterName: "A"})
	var created models.SessionJoinedPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, models.EventSessionCreated).Data, &created))

	hub.Evict([]sessions.Evicted{{ID: created.Session.ID, Code: created.Session.Code}})

	var p models.ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, models.EventError).Data, &p))
	assert.Equal(t, models.ErrCodeSessionNotFound, p.Code)
	assert.Equal(t, 0, hub.BoundCount())
}

// stubClient registers a client without a network connection, as the hub
// goroutine would on register.
func stubClient(h *Hub, id string, queue int) *Client {
	c := &Client{ID: id, hub: h, send: make(chan []byte, queue)}
	h.clients[c.ID] = c
	h.live.Add(1)
	return c
}

func frameFor(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return frame
}

func TestHubIgnoresFramesFromDroppedClient(t *testing.T) {
	store := sessions.NewStore(0, discard)
	hub := NewHub(store, scales.NewCatalog(), discard)

	c := stubClient(hub, "gone", 8)
	hub.dispatch(func() { hub.drop(c) })

	// A create_session read just before the close arrives after the drop.
	hub.receive(inboundFrame{connID: c.ID, frame: frameFor(t, models.EventCreateSession, models.CreateSessionPayload{
		SessionName: "Sprint", ScrumMasterName: "Alice", SessionType: models.SessionTypeQuick,
	})})

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.BoundCount())
	assert.Equal(t, 0, store.Count())

	// A live client's frame is still handled.
	stubClient(hub, "live", 8)
	hub.receive(inboundFrame{connID: "live", frame: frameFor(t, models.EventCreateSession, models.CreateSessionPayload{
		SessionName: "Sprint", ScrumMasterName: "Alice", SessionType: models.SessionTypeQuick,
	})})
	assert.Equal(t, 1, hub.BoundCount())
	assert.Equal(t, 1, store.Count())
}

func TestHubLateReconnectLeavesParticipantDisconnected(t *testing.T) {
	store := sessions.NewStore(0, discard)
	hub := NewHub(store, scales.NewCatalog(), discard)
	sess, smID := store.Create("Sprint", "Alice", models.Scale{Name: "x", Values: []string{"1"}}, models.SessionTypeQuick)
	store.SetParticipantConnected(sess.ID, smID, false)

	c := stubClient(hub, "tab", 8)
	hub.dispatch(func() { hub.drop(c) })
	hub.receive(inboundFrame{connID: c.ID, frame: frameFor(t, models.EventReconnect, models.ReconnectPayload{
		SessionID: sess.ID, ParticipantID: smID,
	})})

	p, err := store.GetParticipant(sess.ID, smID)
	require.NoError(t, err)
	assert.False(t, p.IsConnected)
	assert.Equal(t, 0, hub.BoundCount())
}

func TestHubDropsOverflowedClientsAfterPanic(t *testing.T) {
	hub := NewHub(sessions.NewStore(0, discard), scales.NewCatalog(), discard)
	slow := stubClient(hub, "slow", 1)
	slow.send <- []byte("queued")

	hub.dispatch(func() {
		hub.Send(slow.ID, []byte("overflow"))
		panic("handler failed")
	})

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, []byte("queued"), <-slow.send)
	_, open := <-slow.send
	assert.False(t, open, "send queue should be closed")
}
