package models

import "time"

// SessionType decides how a session begins.
type SessionType string

const (
	// SessionTypePlanned sessions collect stories in the lobby before voting opens.
	SessionTypePlanned SessionType = "planned"
	// SessionTypeQuick sessions start with one default story already open for voting.
	SessionTypeQuick SessionType = "quick"
)

func (t SessionType) IsValid() bool {
	return t == SessionTypePlanned || t == SessionTypeQuick
}

// SessionStatus is monotonic: lobby -> active -> completed.
type SessionStatus string

const (
	SessionStatusLobby     SessionStatus = "lobby"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// StoryStatus represents where a story is in the estimation flow.
type StoryStatus string

const (
	StoryStatusPending  StoryStatus = "pending"
	StoryStatusVoting   StoryStatus = "voting"
	StoryStatusRevealed StoryStatus = "revealed"
	StoryStatusFinal    StoryStatus = "final"
)

// Role is fixed when a participant is created.
type Role string

const (
	RoleScrumMaster Role = "scrum_master"
	RoleDeveloper   Role = "developer"
)

// Participant is a member of a session.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Role        Role      `json:"role"`
	IsConnected bool      `json:"isConnected"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Vote is one participant's estimate for a story.
type Vote struct {
	ParticipantID string    `json:"participantId"`
	Value         string    `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
}

// Story is a work item being estimated.
type Story struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	Status      StoryStatus `json:"status"`
	Votes       []Vote      `json:"votes"`
	FinalPoints *string     `json:"finalPoints"`
	Order       int         `json:"order"`
}

// Clone returns a deep copy of the story.
func (s *Story) Clone() *Story {
	c := *s
	c.Votes = make([]Vote, len(s.Votes))
	copy(c.Votes, s.Votes)
	if s.Description != nil {
		d := *s.Description
		c.Description = &d
	}
	if s.FinalPoints != nil {
		p := *s.FinalPoints
		c.FinalPoints = &p
	}
	return &c
}

// Redacted returns a copy with every vote value blanked while the story is
// still open for voting. Other stories are returned as plain copies.
func (s *Story) Redacted() *Story {
	c := s.Clone()
	if c.Status != StoryStatusVoting {
		return c
	}
	for i := range c.Votes {
		c.Votes[i].Value = ""
	}
	return c
}

// HasVoteFrom reports whether participantID has a vote on the story.
func (s *Story) HasVoteFrom(participantID string) bool {
	for _, v := range s.Votes {
		if v.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// Session is the root aggregate for one estimation meeting.
type Session struct {
	ID            string         `json:"id"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	ScrumMasterID string         `json:"scrumMasterId"`
	Type          SessionType    `json:"type"`
	Status        SessionStatus  `json:"status"`
	PointScale    string         `json:"pointScale"`
	PointValues   []string       `json:"pointValues"`
	Stories       []*Story       `json:"stories"`
	ActiveStoryID *string        `json:"activeStoryId"`
	Participants  []*Participant `json:"participants"`
	TimerDuration *int           `json:"timerDuration"` // seconds
	TimerEndTime  *time.Time     `json:"timerEndTime"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpiresAt     time.Time      `json:"expiresAt"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.PointValues = append([]string(nil), s.PointValues...)
	c.Stories = make([]*Story, len(s.Stories))
	for i, st := range s.Stories {
		c.Stories[i] = st.Clone()
	}
	c.Participants = make([]*Participant, len(s.Participants))
	for i, p := range s.Participants {
		cp := *p
		c.Participants[i] = &cp
	}
	if s.ActiveStoryID != nil {
		id := *s.ActiveStoryID
		c.ActiveStoryID = &id
	}
	if s.TimerDuration != nil {
		d := *s.TimerDuration
		c.TimerDuration = &d
	}
	if s.TimerEndTime != nil {
		t := *s.TimerEndTime
		c.TimerEndTime = &t
	}
	return &c
}

// Story returns the story with the given id, or nil.
func (s *Session) Story(id string) *Story {
	for _, st := range s.Stories {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// Participant returns the participant with the given id, or nil.
func (s *Session) Participant(id string) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// IsScrumMaster reports whether participantID holds the facilitator role.
func (s *Session) IsScrumMaster(participantID string) bool {
	return participantID != "" && s.ScrumMasterID == participantID
}

// RedactedFor returns a copy in which the values of votes on stories that are
// still open for voting are blanked, except the viewer's own vote.
func (s *Session) RedactedFor(viewerID string) *Session {
	c := s.Clone()
	for _, st := range c.Stories {
		if st.Status != StoryStatusVoting {
			continue
		}
		for i := range st.Votes {
			if st.Votes[i].ParticipantID != viewerID {
				st.Votes[i].Value = ""
			}
		}
	}
	return c
}

// StorySummary is the per-story part of a SessionSummary.
type StorySummary struct {
	Title       string        `json:"title"`
	FinalPoints *string       `json:"finalPoints"`
	Votes       []SummaryVote `json:"votes"`
}

// SummaryVote is a vote resolved to the participant's display name.
type SummaryVote struct {
	Participant string `json:"participant"`
	Value       string `json:"value"`
}

// SessionSummary is the write-once report produced when a session ends.
type SessionSummary struct {
	SessionName  string         `json:"sessionName"`
	SessionCode  string         `json:"sessionCode"`
	CompletedAt  time.Time      `json:"completedAt"`
	Participants []string       `json:"participants"`
	Stories      []StorySummary `json:"stories"`
	TotalPoints  float64        `json:"totalPoints"`
}
