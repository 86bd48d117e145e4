package ntp

import (
	"sync"

	"github.com/google/uuid"

	"github.com/novafoundation/nova-core/internal/crypto"
)

// Manager tracks active sessions by id so a running node can route
// inbound NTP messages to the right Session and sweep settlement
// timeouts. It holds no protocol logic of its own; that lives on
// Session.
type Manager struct {
	mu       sync.RWMutex
	local    *crypto.Keypair
	sessions map[uuid.UUID]*Session

	// pending holds initiator sessions keyed by the handshake id they
	// sent, before a SessionID is assigned by the responder's reply.
	pending map[uuid.UUID]*Session
}

// NewManager creates an empty session registry bound to local's
// identity.
func NewManager(local *crypto.Keypair) *Manager {
	return &Manager{
		local:    local,
		sessions: make(map[uuid.UUID]*Session),
		pending:  make(map[uuid.UUID]*Session),
	}
}

// NewOutbound creates a fresh initiator session in Idle and registers
// it under handshakeID until the responder's SessionID arrives. It does
// not begin the handshake; the caller runs BeginHandshake.
func (m *Manager) NewOutbound(handshakeID uuid.UUID) *Session {
	s := NewInitiatorSession(m.local)
	m.mu.Lock()
	m.pending[handshakeID] = s
	m.mu.Unlock()
	return s
}

// ResolvePending moves a pending initiator session from its handshake
// id to its assigned SessionID, once CompleteHandshake has run.
func (m *Manager) ResolvePending(handshakeID uuid.UUID, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, handshakeID)
	m.sessions[s.ID] = s
}

// NewInbound starts a fresh responder session, not yet registered
// under a SessionID until RespondToHandshake assigns one.
func (m *Manager) NewInbound() *Session {
	return NewResponderSession(m.local)
}

// Register indexes s under its current SessionID. Call after
// RespondToHandshake assigns one.
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Get returns the session for id, if any.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the registry, typically once it has
// reached a terminal state and its receipt or rejection has been
// recorded upstream.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Active returns all currently tracked, non-terminal sessions.
func (m *Manager) Active() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		s.mu.Lock()
		terminal := s.State.Terminal()
		s.mu.Unlock()
		if !terminal {
			out = append(out, s)
		}
	}
	return out
}

// SweepTimeouts polls CheckTimeout on every tracked session with an
// in-flight settlement, moving any that have exceeded their finality
// deadline to SettlementTimedOut and their session to StateTimedOut.
// Returns only the sessions moved to StateTimedOut on this sweep.
func (m *Manager) SweepTimeouts() []*Session {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	var timedOut []*Session
	for _, s := range sessions {
		s.mu.Lock()
		tracker := s.Settlement
		s.mu.Unlock()
		if tracker == nil {
			continue
		}
		if tracker.CheckTimeout() == SettlementTimedOut {
			s.mu.Lock()
			newlyTimedOut := !s.State.Terminal()
			if newlyTimedOut {
				s.State = StateTimedOut
			}
			s.mu.Unlock()
			if newlyTimedOut {
				timedOut = append(timedOut, s)
			}
		}
	}
	return timedOut
}

// Count returns the number of tracked sessions, terminal or not.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
