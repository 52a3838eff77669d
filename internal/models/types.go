package models

import "time"

// Scale is a named, ordered set of permissible vote values.
type Scale struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// ScalesResponse is returned from GET /api/scales.
type ScalesResponse struct {
	Scales []Scale `json:"scales"`
}

// SessionPreview is the public view returned from GET /api/sessions/{code}.
// It never carries stories or votes.
type SessionPreview struct {
	ID               string        `json:"id"`
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	Status           SessionStatus `json:"status"`
	ParticipantCount int           `json:"participantCount"`
}

// ErrorResponse is the body of non-2xx HTTP responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Sessions    int       `json:"sessions"`
	Connections int       `json:"connections"`
}
