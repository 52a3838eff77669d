// Package sessions holds the authoritative in-memory registry of estimation
// sessions. Every exported Store method is one atomic unit of work.
package sessions

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pointflow/pointflow/internal/ids"
	"github.com/pointflow/pointflow/internal/models"
)

// DefaultTTL is how long a session lives after creation.
const DefaultTTL = 24 * time.Hour

// quickStoryTitle names the story a quick session opens with.
const quickStoryTitle = "Story 1"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrStoryNotFound        = errors.New("story not found")
	ErrNotVoting            = errors.New("story is not open for voting")
	ErrScrumMasterImmutable = errors.New("scrum master cannot be removed")
)

// entry guards one session. Sessions never share a lock, so operations on
// different sessions do not wait on each other.
type entry struct {
	mu      sync.Mutex
	session *models.Session
}

// Store owns every session, participant, story and vote.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	codes    map[string]string // code -> session id

	codeGen ids.CodeGenerator
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCodeGenerator replaces the session code generator.
func WithCodeGenerator(g ids.CodeGenerator) Option {
	return func(s *Store) { s.codeGen = g }
}

// NewStore creates an empty store. A non-positive ttl means DefaultTTL.
func NewStore(ttl time.Duration, logger *slog.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		sessions: make(map[string]*entry),
		codes:    make(map[string]string),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create builds a session with its scrum master. Quick sessions start
// active with a default story already open for voting.
func (s *Store) Create(name, scrumMasterName string, scale models.Scale, typ models.SessionType) (*models.Session, string) {
	now := s.now().UTC()
	participantID := ids.New()

	sess := &models.Session{
		ID:            ids.New(),
		Name:          name,
		ScrumMasterID: participantID,
		Type:          typ,
		Status:        models.SessionStatusLobby,
		PointScale:    scale.Name,
		PointValues:   append([]string(nil), scale.Values...),
		Stories:       []*models.Story{},
		Participants: []*models.Participant{{
			ID:          participantID,
			Name:        scrumMasterName,
			Role:        models.RoleScrumMaster,
			IsConnected: true,
			JoinedAt:    now,
		}},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if typ == models.SessionTypeQuick {
		story := &models.Story{
			ID:     ids.New(),
			Title:  quickStoryTitle,
			Status: models.StoryStatusVoting,
			Votes:  []models.Vote{},
		}
		sess.Stories = append(sess.Stories, story)
		sess.ActiveStoryID = &story.ID
		sess.Status = models.SessionStatusActive
	}

	s.mu.Lock()
	sess.Code = s.codeGen.Generate(func(code string) bool {
		_, taken := s.codes[code]
		return taken
	})
	s.sessions[sess.ID] = &entry{session: sess}
	s.codes[sess.Code] = sess.ID
	s.mu.Unlock()

	s.logger.Info("session created", "code", sess.Code, "name", name, "type", typ)
	return sess.Clone(), participantID
}

// lookup returns the live entry for id. A session past its expiry is treated
// as absent even before the sweeper has evicted it.
func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.session.ExpiresAt) {
		return nil
	}
	return e
}

// update runs fn with exclusive access to the session.
func (s *Store) update(id string, fn func(sess *models.Session) error) error {
	e := s.lookup(id)
	if e == nil {
		return ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (*models.Session, error) {
	var out *models.Session
	err := s.update(id, func(sess *models.Session) error {
		out = sess.Clone()
		return nil
	})
	return out, err
}

// GetByCode returns a copy of the session registered under code, ignoring case.
func (s *Store) GetByCode(code string) (*models.Session, error) {
	s.mu.RLock()
	id, ok := s.codes[ids.NormalizeCode(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(id)
}

// GetParticipant returns a copy of one participant.
func (s *Store) GetParticipant(sessionID, participantID string) (*models.Participant, error) {
	var out *models.Participant
	err := s.update(sessionID, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return ErrParticipantNotFound
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

// AddParticipant appends a connected developer to the session.
func (s *Store) AddParticipant(sessionID, name string) (*models.Session, string, error) {
	var out *models.Session
	participantID := ids.New()
	err := s.update(sessionID, func(sess *models.Session) error {
		sess.Participants = append(sess.Participants, &models.Participant{
			ID:          participantID,
			Name:        name,
			Role:        models.RoleDeveloper,
			IsConnected: true,
			JoinedAt:    s.now().UTC(),
		})
		out = sess.Clone()
		s.logger.Info("participant joined", "code", sess.Code, "name", name)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, participantID, nil
}

// SetParticipantConnected flips the connection flag. It reports false when
// the session or participant does not exist.
func (s *Store) SetParticipantConnected(sessionID, participantID string, connected bool) bool {
	err := s.update(sessionID, func(sess *models.Session) error {
		p := sess.Participant(participantID)
		if p == nil {
			return ErrParticipantNotFound
		}
		p.IsConnected = connected
		return nil
	})
	return err == nil
}

// RemoveParticipant deletes a developer and strips their votes from every
// story. The scrum master cannot be removed.
func (s *Store) RemoveParticipant(sessionID, participantID string) error {
	return s.update(sessionID, func(sess *models.Session) error {
		if participantID == sess.ScrumMasterID {
			return ErrScrumMasterImmutable
		}
		idx := -1
		for i, p := range sess.Participants {
			if p.ID == participantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrParticipantNotFound
		}
		name := sess.Participants[idx].Name
		sess.Participants = append(sess.Participants[:idx], sess.Participants[idx+1:]...)

		for _, st := range sess.Stories {
			kept := st.Votes[:0]
			for _, v := range st.Votes {
				if v.ParticipantID != participantID {
					kept = append(kept, v)
				}
			}
			st.Votes = kept
		}

		s.logger.Info("participant removed", "code", sess.Code, "name", name)
		return nil
	})
}

// AddStory appends a pending story at the end of the sequence.
func (s *Store) AddStory(sessionID, title string, description *string) (*models.Story, error) {
	var out *models.Story
	err := s.update(sessionID, func(sess *models.Session) error {
		st := &models.Story{
			ID:          ids.New(),
			Title:       title,
			Description: description,
			Status:      models.StoryStatusPending,
			Votes:       []models.Vote{},
			Order:       len(sess.Stories),
		}
		sess.Stories = append(sess.Stories, st)
		out = st.Clone()
		s.logger.Debug("story added", "code", sess.Code, "title", title)
		return nil
	})
	return out, err
}

// UpdateStory changes the title and/or description. Nil fields are left alone.
func (s *Store) UpdateStory(sessionID, storyID string, title, description *string) (*models.Story, error) {
	var out *models.Story
	err := s.update(sessionID, func(sess *models.Session) error {
		st := sess.Story(storyID)
		if st == nil {
			return ErrStoryNotFound
		}
		if title != nil {
			st.Title = *title
		}
		if description != nil {
			d := *description
			st.Description = &d
		}
		out = st.Clone()
		return nil
	})
	return out, err
}

// RemoveStory deletes a story and renumbers the rest densely.
func (s *Store) RemoveStory(sessionID, storyID string) error {
	return s.update(sessionID, func(sess *models.Session) error {
		idx := -1
		for i, st := range sess.Stories {
			if st.ID == storyID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrStoryNotFound
		}
		sess.Stories = append(sess.Stories[:idx], sess.Stories[idx+1:]...)
		renumber(sess.Stories)
		if sess.ActiveStoryID != nil && *sess.ActiveStoryID == storyID {
			sess.ActiveStoryID = nil
		}
		return nil
	})
}

// ReorderStories replaces the story sequence with the stories named by
// storyIDs, in that order. Unknown ids are skipped and stories missing from
// the list drop out of the sequence. It returns the resulting order.
func (s *Store) ReorderStories(sessionID string, storyIDs []string) ([]string, error) {
	var order []string
	err := s.update(sessionID, func(sess *models.Session) error {
		reordered := make([]*models.Story, 0, len(storyIDs))
		placed := make(map[string]bool, len(storyIDs))
		for _, id := range storyIDs {
			st := sess.Story(id)
			if st == nil || placed[id] {
				continue
			}
			placed[id] = true
			reordered = append(reordered, st)
		}
		renumber(reordered)
		sess.Stories = reordered
		order = make([]string, len(reordered))
		for i, st := range reordered {
			order[i] = st.ID
		}
		return nil
	})
	return order, err
}

// StartVoting opens storyID for voting. Any story already open goes back to
// pending, and both lose their votes, in the same step.
func (s *Store) StartVoting(sessionID, storyID string) (*time.Time, error) {
	var endsAt *time.Time
	err := s.update(sessionID, func(sess *models.Session) error {
		target := sess.Story(storyID)
		if target == nil {
			return ErrStoryNotFound
		}
		for _, st := range sess.Stories {
			if st.Status == models.StoryStatusVoting {
				st.Status = models.StoryStatusPending
				st.Votes = []models.Vote{}
			}
		}
		target.Status = models.StoryStatusVoting
		target.Votes = []models.Vote{}
		id := target.ID
		sess.ActiveStoryID = &id
		if sess.Status != models.SessionStatusCompleted {
			sess.Status = models.SessionStatusActive
		}
		s.recomputeTimer(sess)
		endsAt = copyTime(sess.TimerEndTime)

		s.logger.Info("voting started", "code", sess.Code, "story", target.Title)
		return nil
	})
	return endsAt, err
}

// SubmitVote records or replaces participantID's vote. The value is not
// checked against the session's point scale.
func (s *Store) SubmitVote(sessionID, storyID, participantID, value string) error {
	return s.update(sessionID, func(sess *models.Session) error {
		st := sess.Story(storyID)
		if st == nil {
			return ErrStoryNotFound
		}
		if st.Status != models.StoryStatusVoting {
			return ErrNotVoting
		}
		if sess.Participant(participantID) == nil {
			return ErrParticipantNotFound
		}
		kept := st.Votes[:0]
		for _, v := range st.Votes {
			if v.ParticipantID != participantID {
				kept = append(kept, v)
			}
		}
		st.Votes = append(kept, models.Vote{
			ParticipantID: participantID,
			Value:         value,
			Timestamp:     s.now().UTC(),
		})
		s.logger.Debug("vote submitted", "code", sess.Code, "story", st.Title, "participant", participantID)
		return nil
	})
}

// RevealVotes marks the story revealed, stops the timer and returns the votes.
func (s *Store) RevealVotes(sessionID, storyID string) ([]models.Vote, error) {
	var votes []models.Vote
	err := s.update(sessionID, func(sess *models.Session) error {
		st := sess.Story(storyID)
		if st == nil {
			return ErrStoryNotFound
		}
		st.Status = models.StoryStatusRevealed
		sess.TimerEndTime = nil
		votes = append([]models.Vote{}, st.Votes...)
		s.logger.Info("votes revealed", "code", sess.Code, "story", st.Title, "votes", len(votes))
		return nil
	})
	return votes, err
}

// SetFinalPoints finalizes the story. No story is active afterwards.
func (s *Store) SetFinalPoints(sessionID, storyID, points string) error {
	return s.update(sessionID, func(sess *models.Session) error {
		st := sess.Story(storyID)
		if st == nil {
			return ErrStoryNotFound
		}
		p := points
		st.FinalPoints = &p
		st.Status = models.StoryStatusFinal
		sess.ActiveStoryID = nil
		s.logger.Info("story finalized", "code", sess.Code, "story", st.Title, "points", points)
		return nil
	})
}

// SetTimer stores the voting timer duration in seconds; nil or non-positive
// disables it. It returns the resulting duration and end time.
func (s *Store) SetTimer(sessionID string, seconds *int) (*int, *time.Time, error) {
	var (
		duration *int
		endsAt   *time.Time
	)
	err := s.update(sessionID, func(sess *models.Session) error {
		sess.TimerDuration = nil
		if seconds != nil && *seconds > 0 {
			d := *seconds
			sess.TimerDuration = &d
		}
		s.recomputeTimer(sess)
		if sess.TimerDuration != nil {
			d := *sess.TimerDuration
			duration = &d
		}
		endsAt = copyTime(sess.TimerEndTime)
		return nil
	})
	return duration, endsAt, err
}

// recomputeTimer derives TimerEndTime from TimerDuration. The end time only
// moves while a story is active; a disabled timer always clears it.
func (s *Store) recomputeTimer(sess *models.Session) {
	if sess.TimerDuration == nil {
		sess.TimerEndTime = nil
		return
	}
	if sess.ActiveStoryID == nil {
		return
	}
	end := s.now().UTC().Add(time.Duration(*sess.TimerDuration) * time.Second)
	sess.TimerEndTime = &end
}

// EndSession completes the session and returns its summary.
func (s *Store) EndSession(sessionID string) (*models.SessionSummary, error) {
	var summary *models.SessionSummary
	err := s.update(sessionID, func(sess *models.Session) error {
		sess.Status = models.SessionStatusCompleted
		summary = summarize(sess, s.now().UTC())
		s.logger.Info("session ended", "code", sess.Code, "stories", len(sess.Stories), "total_points", summary.TotalPoints)
		return nil
	})
	return summary, err
}

// Evicted identifies a session removed by DeleteExpired.
type Evicted struct {
	ID   string
	Code string
}

// DeleteExpired removes every session whose expiry is at or before now.
func (s *Store) DeleteExpired(now time.Time) []Evicted {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []Evicted
	for id, e := range s.sessions {
		if now.Before(e.session.ExpiresAt) {
			continue
		}
		delete(s.codes, e.session.Code)
		delete(s.sessions, id)
		evicted = append(evicted, Evicted{ID: id, Code: e.session.Code})
	}
	return evicted
}

// Count returns the number of sessions held, including expired ones not yet swept.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func renumber(stories []*models.Story) {
	for i, st := range stories {
		st.Order = i
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
