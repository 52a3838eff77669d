package realtime

import (
	"errors"
	"log/slog"

	"github.com/pointflow/pointflow/internal/models"
	"github.com/pointflow/pointflow/internal/scales"
	"github.com/pointflow/pointflow/internal/sessions"
	"github.com/pointflow/pointflow/internal/textclean"
)

// Sender delivers an encoded frame to one connection.
type Sender interface {
	Send(connID string, frame []byte)
}

// Router turns inbound participant actions into store operations and fans
// the resulting deltas out to the session's connections. It must be driven
// from a single goroutine; the Hub does that.
type Router struct {
	store    *sessions.Store
	registry *Registry
	scales   *scales.Catalog
	out      Sender
	logger   *slog.Logger
}

func NewRouter(store *sessions.Store, registry *Registry, catalog *scales.Catalog, out Sender, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:    store,
		registry: registry,
		scales:   catalog,
		out:      out,
		logger:   logger,
	}
}

type handlerFunc func(r *Router, connID string, env Envelope) error

var handlers = map[string]handlerFunc{
	models.EventCreateSession:     (*Router).createSession,
	models.EventJoinSession:       (*Router).joinSession,
	models.EventReconnect:         (*Router).reconnect,
	models.EventAddStory:          (*Router).addStory,
	models.EventUpdateStory:       (*Router).updateStory,
	models.EventRemoveStory:       (*Router).removeStory,
	models.EventReorderStories:    (*Router).reorderStories,
	models.EventRemoveParticipant: (*Router).removeParticipant,
	models.EventStartVoting:       (*Router).startVoting,
	models.EventSubmitVote:        (*Router).submitVote,
	models.EventRevealVotes:       (*Router).revealVotes,
	models.EventSetFinalPoints:    (*Router).setFinalPoints,
	models.EventSetTimer:          (*Router).setTimer,
	models.EventEndSession:        (*Router).endSession,
}

// Handle processes one inbound frame from connID.
func (r *Router) Handle(connID string, frame []byte) {
	env, err := decodeEnvelope(frame)
	if err != nil {
		r.logger.Warn("malformed frame", "conn", connID, "error", err)
		r.fail(connID, "Malformed message", models.ErrCodeBadRequest)
		return
	}

	h, ok := handlers[env.Event]
	if !ok {
		r.logger.Warn("unknown event", "conn", connID, "event", env.Event)
		return
	}
	if err := h(r, connID, env); err != nil {
		r.logger.Warn("bad payload", "conn", connID, "event", env.Event, "error", err)
		r.fail(connID, "Malformed "+env.Event+" payload", models.ErrCodeBadRequest)
	}
}

// Disconnect releases connID. The participant is only marked disconnected
// once their last connection is gone.
func (r *Router) Disconnect(connID string) {
	b, ok := r.registry.Unbind(connID)
	if !ok {
		return
	}
	r.leave(b, connID)
}

// Evict tells every connection of the evicted sessions that the session is
// gone and unbinds them.
func (r *Router) Evict(evicted []sessions.Evicted) {
	for _, e := range evicted {
		for _, connID := range r.registry.DropSession(e.ID) {
			r.fail(connID, "Session has expired", models.ErrCodeSessionNotFound)
		}
	}
}

func (r *Router) leave(b Binding, exceptConn string) {
	if len(r.registry.ConnectionsOf(b)) > 0 {
		return
	}
	if !r.store.SetParticipantConnected(b.SessionID, b.ParticipantID, false) {
		return
	}
	r.broadcast(b.SessionID, exceptConn, models.EventParticipantLeft, models.ParticipantRefPayload{ParticipantID: b.ParticipantID})
}

// bind attaches connID to a participant, first leaving whatever session the
// connection was bound to before.
func (r *Router) bind(connID string, b Binding) {
	if prev, ok := r.registry.Unbind(connID); ok && prev != b {
		r.logger.Info("connection rebinding", "conn", connID, "from", prev.SessionID, "to", b.SessionID)
		r.leave(prev, connID)
	}
	r.registry.Bind(connID, b)
}

// member returns the sender's binding and session, or false when the
// connection is unbound or the session is gone or completed.
func (r *Router) member(connID string) (Binding, *models.Session, bool) {
	b, ok := r.registry.Lookup(connID)
	if !ok {
		return Binding{}, nil, false
	}
	sess, err := r.store.Get(b.SessionID)
	if err != nil || sess.Status == models.SessionStatusCompleted {
		return Binding{}, nil, false
	}
	return b, sess, true
}

// facilitator is member restricted to the session's scrum master. Anyone
// else gets false and the action is dropped without a reply.
func (r *Router) facilitator(connID string) (Binding, *models.Session, bool) {
	b, sess, ok := r.member(connID)
	if !ok || !sess.IsScrumMaster(b.ParticipantID) {
		return Binding{}, nil, false
	}
	return b, sess, true
}

func (r *Router) createSession(connID string, env Envelope) error {
	var p models.CreateSessionPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	name := textclean.Name(p.SessionName)
	smName := textclean.Name(p.ScrumMasterName)
	if name == "" || smName == "" {
		r.fail(connID, "Session name and your name are required", models.ErrCodeBadRequest)
		return nil
	}
	if p.SessionType == "" {
		p.SessionType = models.SessionTypePlanned
	}
	if !p.SessionType.IsValid() {
		r.fail(connID, "Unknown session type", models.ErrCodeBadRequest)
		return nil
	}
	scale, found := r.scales.Resolve(p.PointScale)
	if !found {
		r.logger.Warn("unknown point scale, using default", "requested", p.PointScale, "scale", scale.Name)
	}

	sess, participantID := r.store.Create(name, smName, scale, p.SessionType)
	r.bind(connID, Binding{SessionID: sess.ID, ParticipantID: participantID})
	r.reply(connID, models.EventSessionCreated, models.SessionJoinedPayload{Session: sess, ParticipantID: participantID})
	return nil
}

func (r *Router) joinSession(connID string, env Envelope) error {
	var p models.JoinSessionPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	name := textclean.Name(p.ParticipantName)
	if name == "" {
		r.fail(connID, "Your name is required", models.ErrCodeBadRequest)
		return nil
	}

	found, err := r.store.GetByCode(p.SessionCode)
	if err != nil {
		r.fail(connID, "Session not found. Please check the code and try again.", models.ErrCodeSessionNotFound)
		return nil
	}
	if found.Status == models.SessionStatusCompleted {
		r.fail(connID, "This session has ended.", models.ErrCodeSessionEnded)
		return nil
	}

	sess, participantID, err := r.store.AddParticipant(found.ID, name)
	if err != nil {
		r.fail(connID, "Session not found. Please check the code and try again.", models.ErrCodeSessionNotFound)
		return nil
	}

	r.bind(connID, Binding{SessionID: sess.ID, ParticipantID: participantID})
	r.reply(connID, models.EventSessionJoined, models.SessionJoinedPayload{
		Session:       sess.RedactedFor(participantID),
		ParticipantID: participantID,
	})
	r.broadcast(sess.ID, connID, models.EventParticipantJoined, models.ParticipantJoinedPayload{
		Participant: sess.Participant(participantID),
	})
	return nil
}

func (r *Router) reconnect(connID string, env Envelope) error {
	var p models.ReconnectPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}

	if _, err := r.store.Get(p.SessionID); err != nil {
		r.fail(connID, "Session no longer exists", models.ErrCodeSessionNotFound)
		return nil
	}
	if _, err := r.store.GetParticipant(p.SessionID, p.ParticipantID); err != nil {
		code := models.ErrCodeParticipantNotFound
		if errors.Is(err, sessions.ErrSessionNotFound) {
			code = models.ErrCodeSessionNotFound
		}
		r.fail(connID, "Participant not found in session", code)
		return nil
	}

	r.store.SetParticipantConnected(p.SessionID, p.ParticipantID, true)
	r.bind(connID, Binding{SessionID: p.SessionID, ParticipantID: p.ParticipantID})

	sess, err := r.store.Get(p.SessionID)
	if err != nil {
		r.fail(connID, "Session no longer exists", models.ErrCodeSessionNotFound)
		return nil
	}
	r.reply(connID, models.EventSessionJoined, models.SessionJoinedPayload{
		Session:       sess.RedactedFor(p.ParticipantID),
		ParticipantID: p.ParticipantID,
	})
	r.broadcast(p.SessionID, connID, models.EventParticipantReconnected, models.ParticipantRefPayload{ParticipantID: p.ParticipantID})
	return nil
}

func (r *Router) addStory(connID string, env Envelope) error {
	var p models.AddStoryPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.member(connID)
	if !ok {
		return nil
	}
	title := textclean.Title(p.Title)
	if title == "" {
		r.fail(connID, "Story title is required", models.ErrCodeBadRequest)
		return nil
	}

	story, err := r.store.AddStory(b.SessionID, title, cleanDescription(p.Description))
	if err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventStoryAdded, models.StoryPayload{Story: story})
	return nil
}

func (r *Router) updateStory(connID string, env Envelope) error {
	var p models.UpdateStoryPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	var title *string
	if p.Title != nil {
		t := textclean.Title(*p.Title)
		if t == "" {
			r.fail(connID, "Story title is required", models.ErrCodeBadRequest)
			return nil
		}
		title = &t
	}
	var desc *string
	if p.Description != nil {
		d := textclean.Description(*p.Description)
		desc = &d
	}

	story, err := r.store.UpdateStory(b.SessionID, p.StoryID, title, desc)
	if err != nil {
		return nil
	}
	// Shared by every member, so no vote value may leave before reveal.
	r.broadcast(b.SessionID, "", models.EventStoryUpdated, models.StoryPayload{Story: story.Redacted()})
	return nil
}

func (r *Router) removeStory(connID string, env Envelope) error {
	var p models.StoryRefPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	if err := r.store.RemoveStory(b.SessionID, p.StoryID); err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventStoryRemoved, models.StoryRefPayload{StoryID: p.StoryID})
	return nil
}

func (r *Router) reorderStories(connID string, env Envelope) error {
	var p models.ReorderStoriesPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	order, err := r.store.ReorderStories(b.SessionID, p.StoryIDs)
	if err != nil {
		return nil
	}
	if order == nil {
		order = []string{}
	}
	r.broadcast(b.SessionID, "", models.EventStoriesReordered, models.ReorderStoriesPayload{StoryIDs: order})
	return nil
}

func (r *Router) removeParticipant(connID string, env Envelope) error {
	var p models.RemoveParticipantPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	if err := r.store.RemoveParticipant(b.SessionID, p.ParticipantID); err != nil {
		return nil
	}

	removed := Binding{SessionID: b.SessionID, ParticipantID: p.ParticipantID}
	r.broadcast(b.SessionID, "", models.EventParticipantRemoved, models.ParticipantRemovedPayload{
		ParticipantID: p.ParticipantID,
		RemovedBy:     b.ParticipantID,
	})
	for _, c := range r.registry.ConnectionsOf(removed) {
		r.registry.Unbind(c)
	}
	return nil
}

func (r *Router) startVoting(connID string, env Envelope) error {
	var p models.StoryRefPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	endsAt, err := r.store.StartVoting(b.SessionID, p.StoryID)
	if err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventVotingStarted, models.VotingStartedPayload{StoryID: p.StoryID, TimerEndTime: endsAt})
	return nil
}

func (r *Router) submitVote(connID string, env Envelope) error {
	var p models.SubmitVotePayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.member(connID)
	if !ok {
		return nil
	}
	if err := r.store.SubmitVote(b.SessionID, p.StoryID, b.ParticipantID, p.Value); err != nil {
		return nil
	}
	// The value stays on the server until reveal.
	r.broadcast(b.SessionID, "", models.EventVoteReceived, models.VoteReceivedPayload{ParticipantID: b.ParticipantID, StoryID: p.StoryID})
	return nil
}

func (r *Router) revealVotes(connID string, env Envelope) error {
	var p models.StoryRefPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	votes, err := r.store.RevealVotes(b.SessionID, p.StoryID)
	if err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventVotesRevealed, models.VotesRevealedPayload{StoryID: p.StoryID, Votes: votes})
	return nil
}

func (r *Router) setFinalPoints(connID string, env Envelope) error {
	var p models.SetFinalPointsPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	if err := r.store.SetFinalPoints(b.SessionID, p.StoryID, p.Points); err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventStoryFinalized, models.StoryFinalizedPayload{StoryID: p.StoryID, Points: p.Points})
	return nil
}

func (r *Router) setTimer(connID string, env Envelope) error {
	var p models.SetTimerPayload
	if err := decodeData(env, &p); err != nil {
		return err
	}
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	duration, endsAt, err := r.store.SetTimer(b.SessionID, p.Duration)
	if err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventTimerUpdated, models.TimerUpdatedPayload{TimerDuration: duration, TimerEndTime: endsAt})
	return nil
}

func (r *Router) endSession(connID string, _ Envelope) error {
	b, _, ok := r.facilitator(connID)
	if !ok {
		return nil
	}
	summary, err := r.store.EndSession(b.SessionID)
	if err != nil {
		return nil
	}
	r.broadcast(b.SessionID, "", models.EventSessionEnded, models.SessionEndedPayload{Summary: summary})
	return nil
}

func (r *Router) reply(connID, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		r.logger.Error("failed to encode reply", "event", event, "error", err)
		return
	}
	r.out.Send(connID, frame)
}

// broadcast sends one frame to every connection of the session except
// exceptConn. The frame is encoded once so every member sees the same bytes.
func (r *Router) broadcast(sessionID, exceptConn, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		r.logger.Error("failed to encode broadcast", "event", event, "error", err)
		return
	}
	for _, connID := range r.registry.Members(sessionID) {
		if connID == exceptConn {
			continue
		}
		r.out.Send(connID, frame)
	}
}

func (r *Router) fail(connID, message, code string) {
	r.reply(connID, models.EventError, models.ErrorPayload{Message: message, Code: code})
}

func cleanDescription(d *string) *string {
	if d == nil {
		return nil
	}
	c := textclean.Description(*d)
	if c == "" {
		return nil
	}
	return &c
}
