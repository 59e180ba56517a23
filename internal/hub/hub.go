package hub

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Types of messages exchanged with call participants.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeJoin         = "join"
	TypeUserJoined   = "user-joined"
	TypeUserLeft     = "user-left"
)

// MaxRoomMembers caps a call at two participants, the mentor and the learner.
const MaxRoomMembers = 2

// ErrRoomFull is returned by Admit when a third user attempts to join a call
// that already has both participants connected.
var ErrRoomFull = errors.New("room is full")

// Config represents the app configuration.
type Config struct {
	Address        string   `koanf:"address"`
	RootURL        string   `koanf:"root_url"`
	AllowedOrigins []string `koanf:"allowed_origins"`

	ReadBufferSize  int           `koanf:"read_buffer"`
	WriteBufferSize int           `koanf:"write_buffer"`
	MaxMessageLen   int           `koanf:"max_message_length"`
	MaxMessageQueue int           `koanf:"max_message_queue"`
	WSTimeout       time.Duration `koanf:"websocket_timeout"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	SessionCookie   string        `koanf:"session_cookie"`
}

// Hub acts as the controller and container for all call rooms. It is the sole
// owner of room state: membership only changes through Admit / Remove /
// Shutdown, and all mutations are serialized under one lock. Room counts are
// expected to stay low (one room per in-progress mentoring call), so a single
// hub-wide lock is sufficient.
type Hub struct {
	cfg *Config
	log *log.Logger

	mut   sync.Mutex
	rooms map[string]*room

	startedAt time.Time
	admitted  uint64
	forwarded uint64
}

// Stats is a snapshot of the hub's state for the health endpoint.
type Stats struct {
	Rooms     int    `json:"rooms"`
	Peers     int    `json:"peers"`
	Admitted  uint64 `json:"admitted"`
	Forwarded uint64 `json:"forwarded"`
	Uptime    string `json:"uptime"`
}

// NewHub returns a new instance of Hub.
func NewHub(cfg *Config, l *log.Logger) *Hub {
	return &Hub{
		cfg:       cfg,
		log:       l,
		rooms:     make(map[string]*room),
		startedAt: time.Now(),
	}
}

// Admit registers a connection as the given user's live signaling channel for
// a call session, creating the room if this is the first join. A reconnect
// for a user already in the room supersedes the prior connection, which is
// closed. A third distinct user is rejected with ErrRoomFull. On success it
// returns the admitted peer and the IDs of the members that were already in
// the room. The first joiner gets an empty list; which side originates the
// offer is decided by the client's role, the relay stays agnostic.
func (h *Hub) Admit(sessionID, userID string, ws *websocket.Conn) (*Peer, []string, error) {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.rooms[sessionID]
	if !ok {
		r = newRoom(sessionID)
		h.rooms[sessionID] = r
	}

	if old, ok := r.members[userID]; ok {
		// Reconnect: the new connection replaces the prior one. Closing the
		// stale socket is required, not incidental; its listener will observe
		// the close but finds the registry entry no longer points at it, so
		// no user-left is emitted for a reconnect.
		old.writeWSControl(websocket.FormatCloseMessage(
			websocket.CloseNormalClosure, "superseded by a new connection"))
		r.evict(old)
		h.log.Printf("connection for %s@%s superseded by reconnect", userID, sessionID)
	} else if len(r.members) >= MaxRoomMembers {
		return nil, nil, ErrRoomFull
	}

	p := newPeer(sessionID, userID, ws, h)
	r.members[userID] = p
	h.admitted++
	return p, r.memberIDs(userID), nil
}

// Forward delivers a signaling payload unchanged to every member of the
// sender's room except the sender. A room with no other members is not an
// error: signaling messages are dropped, never queued or retried. Stale
// senders (superseded or already removed) are ignored.
func (h *Hub) Forward(from *Peer, payload []byte) {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.rooms[from.SessionID]
	if !ok || r.members[from.UserID] != from {
		return
	}
	for id, m := range r.members {
		if id == from.UserID {
			continue
		}
		m.send(payload)
		h.forwarded++
	}
}

// Remove deletes the peer's membership entry and, if that empties the room,
// the room itself. It reports the remaining member IDs and whether anything
// was removed; a second call for the same peer is a no-op.
func (h *Hub) Remove(p *Peer) ([]string, bool) {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.rooms[p.SessionID]
	if !ok || r.members[p.UserID] != p {
		return nil, false
	}
	r.evict(p)
	if len(r.members) == 0 {
		delete(h.rooms, p.SessionID)
		return nil, true
	}
	return r.memberIDs(""), true
}

// BroadcastEvent sends a structured user-joined / user-left notification
// about the given user to all current room members except that user.
func (h *Hub) BroadcastEvent(sessionID, aboutUserID, eventType string) {
	h.mut.Lock()
	defer h.mut.Unlock()

	r, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	payload := makeEventPayload(eventType, aboutUserID)
	for id, m := range r.members {
		if id == aboutUserID {
			continue
		}
		m.send(payload)
	}
}

// Shutdown force-closes every connection and discards all rooms. Used on
// server shutdown; in-flight calls are dropped and re-joinable after restart.
func (h *Hub) Shutdown() {
	h.mut.Lock()
	defer h.mut.Unlock()

	for id, r := range h.rooms {
		for _, p := range r.members {
			p.writeWSControl(websocket.FormatCloseMessage(
				websocket.CloseGoingAway, "server shutting down"))
			close(p.dataQ)
			p.ws.Close()
		}
		delete(h.rooms, id)
	}
}

// Stats returns a snapshot of the hub's current state.
func (h *Hub) Stats() Stats {
	h.mut.Lock()
	defer h.mut.Unlock()

	peers := 0
	for _, r := range h.rooms {
		peers += len(r.members)
	}
	return Stats{
		Rooms:     len(h.rooms),
		Peers:     peers,
		Admitted:  h.admitted,
		Forwarded: h.forwarded,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}
}
