package store

import (
	"errors"
	"time"
)

// Store represents a backend holding the participant records of booked
// mentoring sessions. The booking application writes them; the relay only
// reads them to authorize call joins.
type Store interface {
	AddCallSession(cs CallSession, ttl time.Duration) error
	GetCallSession(id string) (CallSession, error)
	RemoveCallSession(id string) error
}

// CallSession represents the participant pair of one booked mentoring
// session. IDs are opaque strings matching the platform's primary keys.
type CallSession struct {
	ID        string `json:"id"`
	MentorID  string `json:"mentor_id"`
	LearnerID string `json:"learner_id"`
}

// ErrSessionNotFound indicates that the requested call session was not found.
var ErrSessionNotFound = errors.New("call session not found")
