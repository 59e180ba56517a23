package mem

import (
	"errors"
	"testing"
	"time"

	"github.com/Jyotish2002/skill-link/store"
)

func newTestStore(t *testing.T) *InMemory {
	t.Helper()
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}
	return s
}

func TestAddGetRemove(t *testing.T) {
	s := newTestStore(t)

	cs := store.CallSession{ID: "s1", MentorID: "u1", LearnerID: "u2"}
	if err := s.AddCallSession(cs, time.Hour); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	got, err := s.GetCallSession("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != cs {
		t.Fatalf("want %+v, got %+v", cs, got)
	}

	if _, err := s.GetCallSession("nope"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}

	if err := s.RemoveCallSession("s1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := s.GetCallSession("s1"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("removed session still present: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	s := newTestStore(t)

	s.AddCallSession(store.CallSession{ID: "old", MentorID: "u1", LearnerID: "u2"}, -time.Second)
	if _, err := s.GetCallSession("old"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}

	// Zero TTL never expires.
	s.AddCallSession(store.CallSession{ID: "keep", MentorID: "u1", LearnerID: "u2"}, 0)
	if _, err := s.GetCallSession("keep"); err != nil {
		t.Fatalf("zero-ttl session should persist: %v", err)
	}

	s.cleanup()
	if _, err := s.GetCallSession("keep"); err != nil {
		t.Fatalf("cleanup should not remove zero-ttl sessions: %v", err)
	}
}
