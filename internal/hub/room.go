package hub

import "encoding/json"

// room represents one active call's signaling context: the mapping from
// participant user ID to that participant's live connection. Rooms are
// created on first join and destroyed the instant the last member leaves.
// Connection handles are borrowed references; the registry closes a peer's
// outbound queue when it evicts the peer, but the websocket itself belongs
// to the peer's goroutines.
type room struct {
	id      string
	members map[string]*Peer
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[string]*Peer, MaxRoomMembers),
	}
}

// evict removes a peer's membership entry and closes its outbound queue,
// which makes its writer flush pending messages, send a close frame and exit.
// Callers hold the hub lock.
func (r *room) evict(p *Peer) {
	delete(r.members, p.UserID)
	close(p.dataQ)
}

// memberIDs returns the IDs of all members except the given one.
func (r *room) memberIDs(exclude string) []string {
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// eventMsg is the wire shape of join/leave notifications. It matches what
// the web client's call page switches on.
type eventMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// makeEventPayload prepares a user-joined / user-left notification payload.
func makeEventPayload(eventType, userID string) []byte {
	b, _ := json.Marshal(eventMsg{Type: eventType, UserID: userID})
	return b
}
