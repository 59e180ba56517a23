package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/Jyotish2002/skill-link/store"
	"github.com/Jyotish2002/skill-link/store/mem"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func makeToken(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("error signing token: %v", err)
	}
	return s
}

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	st, err := mem.New(mem.Config{})
	if err != nil {
		t.Fatalf("error creating store: %v", err)
	}
	st.AddCallSession(store.CallSession{ID: "s1", MentorID: "u1", LearnerID: "u2"}, time.Hour)
	st.AddCallSession(store.CallSession{ID: "s9", MentorID: "7", LearnerID: "8"}, time.Hour)
	return New(Config{JWTSecret: testSecret}, st)
}

func TestAuthorizeParticipants(t *testing.T) {
	g := newTestGate(t)

	for _, userID := range []string{"u1", "u2"} {
		tok := makeToken(t, jwt.MapClaims{"userId": userID}, testSecret)
		ident, err := g.Authorize(tok, "s1")
		if err != nil {
			t.Fatalf("%s should be admitted: %v", userID, err)
		}
		if ident.UserID != userID || ident.SessionID != "s1" {
			t.Fatalf("wrong identity: %+v", ident)
		}
	}
}

func TestAuthorizeNumericClaim(t *testing.T) {
	g := newTestGate(t)

	// Older tokens carry userId as a JSON number.
	tok := makeToken(t, jwt.MapClaims{"userId": 7}, testSecret)
	ident, err := g.Authorize(tok, "s9")
	if err != nil {
		t.Fatalf("numeric claim should be admitted: %v", err)
	}
	if ident.UserID != "7" {
		t.Fatalf("wrong identity: %+v", ident)
	}
}

func TestAuthorizeRejections(t *testing.T) {
	g := newTestGate(t)

	tests := []struct {
		name      string
		token     string
		sessionID string
		want      error
	}{
		{"missing token", "", "s1", ErrUnauthenticated},
		{"garbage token", "not.a.jwt", "s1", ErrUnauthenticated},
		{"wrong key", makeToken(t, jwt.MapClaims{"userId": "u1"}, "other-secret"), "s1", ErrUnauthenticated},
		{"expired", makeToken(t, jwt.MapClaims{
			"userId": "u1",
			"exp":    time.Now().Add(-time.Hour).Unix(),
		}, testSecret), "s1", ErrUnauthenticated},
		{"no userId claim", makeToken(t, jwt.MapClaims{"sub": "u1"}, testSecret), "s1", ErrUnauthenticated},
		{"unknown session", makeToken(t, jwt.MapClaims{"userId": "u1"}, testSecret), "s404", store.ErrSessionNotFound},
		{"not a participant", makeToken(t, jwt.MapClaims{"userId": "u3"}, testSecret), "s1", ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authorize(tc.token, tc.sessionID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthorizeAlgorithmConfusion(t *testing.T) {
	g := newTestGate(t)

	// A token that names an unexpected signing algorithm is rejected even if
	// its signature would verify.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{"userId": "u1"})
	s, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("error signing token: %v", err)
	}
	if _, err := g.Authorize(s, "s1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("HS384 token should be rejected, got %v", err)
	}
}
