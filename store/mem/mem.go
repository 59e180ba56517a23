package mem

import (
	"sync"
	"time"

	"github.com/Jyotish2002/skill-link/store"
)

// Config represents the InMemory store config structure.
type Config struct{}

// InMemory represents the in-memory implementation of the Store interface.
// Meant for development and tests; production deployments read the session
// mirror the booking app maintains in Redis.
type InMemory struct {
	cfg      *Config
	sessions map[string]*entry
	mu       sync.Mutex
}

type entry struct {
	store.CallSession
	Expire time.Time
}

// New returns a new InMemory store.
func New(cfg Config) (*InMemory, error) {
	s := &InMemory{
		cfg:      &cfg,
		sessions: map[string]*entry{},
	}
	go s.watch()
	return s, nil
}

// watch the store to clean it up.
func (m *InMemory) watch() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for range t.C {
		m.cleanup()
	}
}

// cleanup removes expired items from the store.
func (m *InMemory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, e := range m.sessions {
		if !e.Expire.IsZero() && e.Expire.Before(now) {
			delete(m.sessions, id)
		}
	}
}

// AddCallSession adds a call session record to the store. A zero ttl means
// the record never expires.
func (m *InMemory) AddCallSession(cs store.CallSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{CallSession: cs}
	if ttl != 0 {
		e.Expire = time.Now().Add(ttl)
	}
	m.sessions[cs.ID] = e
	return nil
}

// GetCallSession gets a call session record from the store.
func (m *InMemory) GetCallSession(id string) (store.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return store.CallSession{}, store.ErrSessionNotFound
	}
	if !e.Expire.IsZero() && e.Expire.Before(time.Now()) {
		delete(m.sessions, id)
		return store.CallSession{}, store.ErrSessionNotFound
	}
	return e.CallSession, nil
}

// RemoveCallSession deletes a call session record from the store.
func (m *InMemory) RemoveCallSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}
