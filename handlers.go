package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Jyotish2002/skill-link/internal/auth"
	"github.com/Jyotish2002/skill-link/internal/hub"
	"github.com/Jyotish2002/skill-link/store"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
)

const (
	hasAuth = 1 << iota
)

// reqCtx is the context injected into every request.
type reqCtx struct {
	app       *App
	sessionID string
	userID    string
}

// jsonResp is the envelope for all JSON API responses.
type jsonResp struct {
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

// handleWS admits an authorized participant into their call session's room
// and relays signaling messages until the connection drops.
func handleWS(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)

	// Create the WS connection.
	ws, err := app.up.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Printf("websocket upgrade failed: %s: %v", r.RemoteAddr, err)
		return
	}

	peer, others, err := app.hub.Admit(ctx.sessionID, ctx.userID, ws)
	if err != nil {
		// Both participants are already connected.
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room is full"),
			time.Now().Add(app.cfg.WSTimeout))
		ws.Close()
		return
	}
	app.logger.Printf("user %s joined session %s (%d already present)",
		ctx.userID, ctx.sessionID, len(others))

	// Notify the peer already in the room, if any.
	app.hub.BroadcastEvent(ctx.sessionID, ctx.userID, hub.TypeUserJoined)

	go peer.RunWriter()
	peer.RunListener()
}

// handleHealth reports liveness and a snapshot of relay activity.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)
	respondJSON(w, app.hub.Stats(), nil, http.StatusOK)
}

// wrap is a middleware that authenticates and authorizes requests against
// the platform's credential tokens and session records before handing them
// to the target handler. It attaches the app and admitted-identity contexts.
func wrap(next http.HandlerFunc, app *App, opts uint8) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &reqCtx{
			app:       app,
			sessionID: chi.URLParam(r, "sessionID"),
		}

		// Run the gate before any room state is touched. A rejection here
		// terminates the attempt with no resources allocated.
		if opts&hasAuth != 0 {
			ident, err := app.gate.Authorize(readCredToken(r, app.cfg.SessionCookie), req.sessionID)
			if err != nil {
				var code int
				switch {
				case errors.Is(err, auth.ErrUnauthenticated):
					code = http.StatusUnauthorized
				case errors.Is(err, auth.ErrForbidden):
					code = http.StatusForbidden
				case errors.Is(err, store.ErrSessionNotFound):
					code = http.StatusNotFound
				default:
					// Store lookups can fail for infrastructure reasons.
					// Don't dress those up as a credential rejection.
					app.logger.Printf("error authorizing session %q: %v", req.sessionID, err)
					respondJSON(w, nil, errors.New("internal server error"), http.StatusInternalServerError)
					return
				}
				app.logger.Printf("rejected join for session %q: %v", req.sessionID, err)
				respondJSON(w, nil, err, code)
				return
			}
			req.userID = ident.UserID
		}

		// Attach the request context.
		ctx := context.WithValue(r.Context(), "ctx", req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// readCredToken extracts the platform's credential token from the session
// cookie, falling back to an Authorization bearer header for non-browser
// clients.
func readCredToken(r *http.Request, cookieName string) string {
	if ck, _ := r.Cookie(cookieName); ck != nil && ck.Value != "" {
		return ck.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// checkOrigin validates the handshake's Origin header against the configured
// allowlist. An empty Origin (non-browser client) is accepted.
func (app *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range app.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// respondJSON responds to an HTTP request with a generic payload or an error.
func respondJSON(w http.ResponseWriter, data interface{}, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	out := jsonResp{Data: data}
	if err != nil {
		e := err.Error()
		out.Error = &e
	}
	b, err := json.Marshal(out)
	if err != nil {
		logger.Printf("error marshalling JSON response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Write(b)
}
