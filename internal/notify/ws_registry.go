package notify

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Message is the real-time payload pushed over a user's subscription channel.
type Message struct {
	RequestID string `json:"request_id,omitempty"`
	Kind      string `json:"kind"` // notification, tracking, payment
	Body      string `json:"body"`
}

// WSSession represents one connected user session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(m)
}

// WSRegistry holds live sessions keyed by user id. Carrier sessions are
// additionally reachable through the broadcast topic.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	carriers map[string]struct{}
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	return &WSRegistry{
		sessions: make(map[string]*WSSession),
		carriers: make(map[string]struct{}),
		logger:   logger,
	}
}

func (r *WSRegistry) Add(userID string, carrier bool, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &WSSession{conn: conn}
	if carrier {
		r.carriers[userID] = struct{}{}
	}
}

func (r *WSRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	delete(r.carriers, userID)
}

// Push delivers to one user. A missing session is not an error from the
// caller's perspective; delivery is best-effort.
func (r *WSRegistry) Push(userID string, m Message) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(m); err != nil {
		r.logger.Warn("ws send failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// Broadcast pushes to every connected carrier session.
func (r *WSRegistry) Broadcast(m Message) {
	r.mu.RLock()
	targets := make([]*WSSession, 0, len(r.carriers))
	for id := range r.carriers {
		if s, ok := r.sessions[id]; ok {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()
	for _, s := range targets {
		_ = s.Send(m)
	}
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
