package notify

import (
	"log/slog"
	"testing"
)

func TestPushWithoutSession(t *testing.T) {
	r := NewWSRegistry(slog.Default())
	if err := r.Push("nobody", Message{Kind: "notification", Body: "x"}); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := NewWSRegistry(slog.Default())
	r.Remove("nobody")
	// broadcast over an empty registry must not panic
	r.Broadcast(Message{Kind: "notification", Body: "x"})
}
