package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Jyotish2002/skill-link/store"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated indicates a missing, malformed, expired or otherwise
	// unverifiable credential token.
	ErrUnauthenticated = errors.New("invalid or missing credential token")

	// ErrForbidden indicates an authenticated user who is not a participant
	// of the session they tried to join.
	ErrForbidden = errors.New("not a participant of this session")
)

// Config represents the auth configuration.
type Config struct {
	// Shared secret the platform signs its auth tokens with (HMAC-SHA256).
	JWTSecret string `koanf:"jwt_secret"`
}

// Identity is an admitted connection context: the authenticated user and the
// call session they are authorized to join.
type Identity struct {
	UserID    string
	SessionID string
}

// Gate authenticates and authorizes connection attempts against the
// platform's identity tokens and session records. It runs once per
// connection attempt, before any room state is touched, and has no side
// effects beyond a read-only session lookup.
type Gate struct {
	secret []byte
	store  store.Store
}

// New returns a new instance of Gate.
func New(cfg Config, st store.Store) *Gate {
	return &Gate{
		secret: []byte(cfg.JWTSecret),
		store:  st,
	}
}

// Authorize verifies the credential token and checks that the authenticated
// user is a recorded participant (mentor or learner) of the given session.
// Failures surface as ErrUnauthenticated, store.ErrSessionNotFound or
// ErrForbidden. Store infrastructure errors pass through unchanged.
func (g *Gate) Authorize(token, sessionID string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	userID, err := g.verifyToken(token)
	if err != nil {
		return Identity{}, err
	}

	cs, err := g.store.GetCallSession(sessionID)
	if err != nil {
		return Identity{}, err
	}
	if userID != cs.MentorID && userID != cs.LearnerID {
		return Identity{}, ErrForbidden
	}

	return Identity{UserID: userID, SessionID: sessionID}, nil
}

// verifyToken validates the token's signature and expiry and extracts the
// user ID claim.
func (g *Gate) verifyToken(token string) (string, error) {
	t, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrUnauthenticated
	}

	// The platform issues tokens with a userId claim. User IDs are serial
	// integers in its database, so older tokens carry the claim as a JSON
	// number rather than a string.
	switch v := claims["userId"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return "", ErrUnauthenticated
}
