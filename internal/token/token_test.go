package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewManager("secret-key", 5*time.Minute)
	tok, err := m.Issue("req-1", "carrier-9")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	carrier, err := m.Validate(tok, "req-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if carrier != "carrier-9" {
		t.Fatalf("expected carrier-9, got %q", carrier)
	}
}

func TestValidateRejectsWrongRequest(t *testing.T) {
	m := NewManager("secret-key", 5*time.Minute)
	tok, _ := m.Issue("req-1", "carrier-9")
	if _, err := m.Validate(tok, "req-2"); !errors.Is(err, ErrRequestMismatch) {
		t.Fatalf("expected ErrRequestMismatch, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("secret-key", -time.Minute)
	tok, _ := m.Issue("req-1", "carrier-9")
	if _, err := m.Validate(tok, "req-1"); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuer := NewManager("secret-a", 5*time.Minute)
	verifier := NewManager("secret-b", 5*time.Minute)
	tok, _ := issuer.Issue("req-1", "carrier-9")
	if _, err := verifier.Validate(tok, "req-1"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("secret-key", 5*time.Minute)
	if _, err := m.Validate("not-a-token", "req-1"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewManagerPanicsOnEmptySecret(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty secret")
		}
	}()
	NewManager("   ", time.Minute)
}
