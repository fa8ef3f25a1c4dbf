package token

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "pamctl", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	raw, err := issuer.Issue("alice", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	session, err := issuer.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if session.Username != "alice" {
		t.Errorf("Username = %q, want alice", session.Username)
	}
	if session.Service != "login" {
		t.Errorf("Service = %q, want login", session.Service)
	}
	if remaining := time.Until(session.Expires); remaining <= 0 || remaining > time.Minute {
		t.Errorf("unexpected expiry %v", session.Expires)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "pamctl", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	raw, err := issuer.Issue("alice", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d segments", len(parts))
	}
	payload := []byte(parts[1])
	if payload[3] == 'A' {
		payload[3] = 'B'
	} else {
		payload[3] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := issuer.Verify(tampered); err == nil {
		t.Error("tampered token must not verify")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, "pamctl", time.Minute)
	other, _ := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), "pamctl", time.Minute)

	raw, err := issuer.Issue("alice", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(raw); err == nil {
		t.Error("token signed with a different key must not verify")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	minted, _ := NewIssuer(testSecret, "someone-else", time.Minute)
	verifier, _ := NewIssuer(testSecret, "pamctl", time.Minute)

	raw, err := minted.Issue("alice", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := verifier.Verify(raw); err == nil {
		t.Error("token from a different issuer must not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer, err := NewIssuer(testSecret, "pamctl", time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	raw, err := issuer.Issue("alice", "login")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Move the verifier's clock past the expiry.
	issuer.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := issuer.Verify(raw); err == nil {
		t.Error("expired token must not verify")
	}
}

func TestNewIssuerValidation(t *testing.T) {
	if _, err := NewIssuer([]byte("short"), "pamctl", time.Minute); err == nil {
		t.Error("short secret must be rejected")
	}
	if _, err := NewIssuer(testSecret, "", time.Minute); err == nil {
		t.Error("empty issuer must be rejected")
	}

	issuer, err := NewIssuer(testSecret, "pamctl", 0)
	if err != nil {
		t.Fatalf("NewIssuer with zero ttl: %v", err)
	}
	if issuer.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want DefaultTTL", issuer.ttl)
	}
}
