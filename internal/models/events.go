package models

import "time"

// Client -> server events.
const (
	EventCreateSession     = "create_session"
	EventJoinSession       = "join_session"
	EventReconnect         = "reconnect"
	EventAddStory          = "add_story"
	EventUpdateStory       = "update_story"
	EventRemoveStory       = "remove_story"
	EventReorderStories    = "reorder_stories"
	EventRemoveParticipant = "remove_participant"
	EventStartVoting       = "start_voting"
	EventSubmitVote        = "submit_vote"
	EventRevealVotes       = "reveal_votes"
	EventSetFinalPoints    = "set_final_points"
	EventSetTimer          = "set_timer"
	EventEndSession        = "end_session"
)

// Server -> client events.
const (
	EventSessionCreated         = "session_created"
	EventSessionJoined          = "session_joined"
	EventParticipantJoined      = "participant_joined"
	EventParticipantLeft        = "participant_left"
	EventParticipantReconnected = "participant_reconnected"
	EventParticipantRemoved     = "participant_removed"
	EventStoryAdded             = "story_added"
	EventStoryUpdated           = "story_updated"
	EventStoryRemoved           = "story_removed"
	EventStoriesReordered       = "stories_reordered"
	EventVotingStarted          = "voting_started"
	EventVoteReceived           = "vote_received"
	EventVotesRevealed          = "votes_revealed"
	EventStoryFinalized         = "story_finalized"
	EventTimerUpdated           = "timer_updated"
	EventSessionEnded           = "session_ended"
	EventError                  = "error"
)

// Machine-readable error codes carried by the error event.
const (
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	ErrCodeSessionEnded        = "SESSION_ENDED"
	ErrCodeBadRequest          = "BAD_REQUEST"
)

// Inbound payloads.

type CreateSessionPayload struct {
	SessionName     string      `json:"sessionName"`
	ScrumMasterName string      `json:"scrumMasterName"`
	PointScale      string      `json:"pointScale"`
	SessionType     SessionType `json:"sessionType"`
}

type JoinSessionPayload struct {
	SessionCode     string `json:"sessionCode"`
	ParticipantName string `json:"participantName"`
}

type ReconnectPayload struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
}

type AddStoryPayload struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type UpdateStoryPayload struct {
	StoryID     string  `json:"storyId"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type StoryRefPayload struct {
	StoryID string `json:"storyId"`
}

type ReorderStoriesPayload struct {
	StoryIDs []string `json:"storyIds"`
}

type RemoveParticipantPayload struct {
	ParticipantID string `json:"participantId"`
}

type SubmitVotePayload struct {
	StoryID string `json:"storyId"`
	Value   string `json:"value"`
}

type SetFinalPointsPayload struct {
	StoryID string `json:"storyId"`
	Points  string `json:"points"`
}

type SetTimerPayload struct {
	Duration *int `json:"duration"` // seconds, null disables
}

// Outbound payloads.

type SessionJoinedPayload struct {
	Session       *Session `json:"session"`
	ParticipantID string   `json:"participantId"`
}

type ParticipantJoinedPayload struct {
	Participant *Participant `json:"participant"`
}

type ParticipantRefPayload struct {
	ParticipantID string `json:"participantId"`
}

type ParticipantRemovedPayload struct {
	ParticipantID string `json:"participantId"`
	RemovedBy     string `json:"removedBy"`
}

type StoryPayload struct {
	Story *Story `json:"story"`
}

type VotingStartedPayload struct {
	StoryID      string     `json:"storyId"`
	TimerEndTime *time.Time `json:"timerEndTime"`
}

type VoteReceivedPayload struct {
	ParticipantID string `json:"participantId"`
	StoryID       string `json:"storyId"`
}

type VotesRevealedPayload struct {
	StoryID string `json:"storyId"`
	Votes   []Vote `json:"votes"`
}

type StoryFinalizedPayload struct {
	StoryID string `json:"storyId"`
	Points  string `json:"points"`
}

type TimerUpdatedPayload struct {
	TimerDuration *int       `json:"timerDuration"`
	TimerEndTime  *time.Time `json:"timerEndTime"`
}

type SessionEndedPayload struct {
	Summary *SessionSummary `json:"summary"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
