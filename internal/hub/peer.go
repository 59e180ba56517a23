package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// Peer represents an individual participant's signaling connection, bound to
// one (session, user) pair for its lifetime. It is never shared across rooms.
type Peer struct {
	UserID    string
	SessionID string

	ws  *websocket.Conn
	hub *Hub

	// Channel for outbound messages. Closed by the registry when the peer
	// is evicted.
	dataQ chan []byte
}

// newPeer returns a new instance of Peer. Called by the hub under its lock.
func newPeer(sessionID, userID string, ws *websocket.Conn, h *Hub) *Peer {
	return &Peer{
		UserID:    userID,
		SessionID: sessionID,
		ws:        ws,
		hub:       h,
		dataQ:     make(chan []byte, h.cfg.MaxMessageQueue),
	}
}

// RunListener is a blocking function that reads incoming messages from the
// peer's WS connection until it drops or errors. When the connection closes,
// the peer is removed from its room and the remaining member is notified.
// Removal happens before this function returns, so a closed connection never
// leaves a stale membership entry behind. This should be invoked from the
// connection's handler goroutine.
func (p *Peer) RunListener() {
	p.ws.SetReadLimit(int64(p.hub.cfg.MaxMessageLen))
	p.ws.SetReadDeadline(time.Now().Add(p.hub.cfg.IdleTimeout))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(p.hub.cfg.IdleTimeout))
	})
	for {
		_, m, err := p.ws.ReadMessage()
		if err != nil {
			break
		}
		p.ws.SetReadDeadline(time.Now().Add(p.hub.cfg.IdleTimeout))
		p.processMessage(m)
	}

	// WS connection is closed.
	p.ws.Close()
	if _, removed := p.hub.Remove(p); removed {
		p.hub.BroadcastEvent(p.SessionID, p.UserID, TypeUserLeft)
		p.hub.log.Printf("user %s left session %s", p.UserID, p.SessionID)
	}
}

// RunWriter is a blocking function that writes queued messages to the peer's
// WS connection and keeps the connection alive with periodic pings. This
// should be invoked as a goroutine.
func (p *Peer) RunWriter() {
	ping := time.NewTicker(p.hub.cfg.PingInterval)
	defer func() {
		ping.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case message, ok := <-p.dataQ:
			if !ok {
				p.writeWSData(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.writeWSData(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping.C:
			if err := p.writeWSData(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// send queues a message to be written to the peer's WS. Called by the hub
// under its lock; never blocks. A full queue means the peer has stopped
// draining its connection, so the message is dropped.
func (p *Peer) send(b []byte) {
	select {
	case p.dataQ <- b:
	default:
		p.hub.log.Printf("dropping message to %s@%s: queue full", p.UserID, p.SessionID)
	}
}

// writeWSData writes the given payload to the peer's WS connection.
func (p *Peer) writeWSData(msgType int, payload []byte) error {
	p.ws.SetWriteDeadline(time.Now().Add(p.hub.cfg.WSTimeout))
	return p.ws.WriteMessage(msgType, payload)
}

// writeWSControl writes the given close payload to the peer's WS connection.
func (p *Peer) writeWSControl(payload []byte) error {
	return p.ws.WriteControl(websocket.CloseMessage, payload, time.Now().Add(p.hub.cfg.WSTimeout))
}

// processMessage routes one inbound message. Offer, answer and ice-candidate
// payloads are forwarded verbatim to the other room member; routing trusts
// only the identity recorded at admission, never anything claimed in the
// message body. Anything that doesn't parse as a tagged message, or carries
// an unknown type, is dropped without closing the connection.
func (p *Peer) processMessage(b []byte) {
	var m struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		p.hub.log.Printf("malformed message from %s@%s: %v", p.UserID, p.SessionID, err)
		return
	}

	switch m.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		p.hub.Forward(p, b)

	case TypeJoin:
		// The web client announces itself after the handshake, but
		// membership was already established at admission. Nothing to do.

	default:
		p.hub.log.Printf("unknown message type %q from %s@%s", m.Type, p.UserID, p.SessionID)
	}
}
