package store

import (
	"testing"
	"time"
)

func newTestSessionStore(t *testing.T, ttl time.Duration) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore("test-secret-0123456789", ttl, JWTOptions{})
	if err != nil {
		t.Fatalf("new jwt session store: %v", err)
	}
	return s
}

func TestJWTSessionRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, time.Minute)
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("resolve token: ok=%v err=%v", ok, err)
	}
	if uid != "user-1" {
		t.Fatalf("expected subject user-1, got %q", uid)
	}
}

func TestJWTSessionRejectsGarbage(t *testing.T) {
	s := newTestSessionStore(t, time.Minute)
	if _, ok, err := s.GetUserIDByToken("not-a-token"); ok || err == nil {
		t.Fatalf("garbage token should fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionRejectsWrongSecret(t *testing.T) {
	signer := newTestSessionStore(t, time.Minute)
	token, err := signer.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := NewJWTSessionStore("a-different-secret", time.Minute, JWTOptions{})
	if err != nil {
		t.Fatalf("new jwt session store: %v", err)
	}
	if _, ok, err := other.GetUserIDByToken(token); ok || err == nil {
		t.Fatalf("token signed with another secret should fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionExpiryEnforced(t *testing.T) {
	s := newTestSessionStore(t, time.Minute)
	issued := time.Now()
	s.now = func() time.Time { return issued }
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	// Past TTL plus leeway.
	s.now = func() time.Time { return issued.Add(time.Minute + defaultJWTLeeway + time.Second) }
	if _, ok, err := s.GetUserIDByToken(token); ok || err == nil {
		t.Fatalf("expired token should fail, ok=%v err=%v", ok, err)
	}
}
