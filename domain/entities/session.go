package entities

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState represents the interview session state
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateListening  SessionState = "listening"
	SessionStateProcessing SessionState = "processing"
	SessionStateResponding SessionState = "responding"
	SessionStateWaiting    SessionState = "waiting"
	SessionStateError      SessionState = "error"
)

// ParseSessionState maps a wire state name to a SessionState
func ParseSessionState(s string) (SessionState, error) {
	state := SessionState(s)
	if !state.Valid() {
		return "", errors.New("invalid session state: " + s)
	}
	return state, nil
}

// Valid reports whether s is one of the known session states
func (s SessionState) Valid() bool {
	switch s {
	case SessionStateIdle, SessionStateListening, SessionStateProcessing,
		SessionStateResponding, SessionStateWaiting, SessionStateError:
		return true
	}
	return false
}

// Busy reports whether the server is expected to be working on a turn
func (s SessionState) Busy() bool {
	return s == SessionStateProcessing || s == SessionStateResponding
}

// Transition is one recorded session state change
type Transition struct {
	SessionID string       `json:"session_id" bson:"session_id"`
	Previous  SessionState `json:"previous" bson:"previous"`
	Current   SessionState `json:"current" bson:"current"`
	Reason    string       `json:"reason" bson:"reason"`
	At        time.Time    `json:"at" bson:"at"`
}

// SessionIdentity tracks the client generated session ID and the server ID it
// was later remapped to. The mapping lives for the lifetime of the process so
// reconnects keep the same logical session.
type SessionIdentity struct {
	mu       sync.RWMutex
	clientID string
	serverID string
	remapAt  time.Time
	aliases  map[string]string // any known ID -> client ID
}

// NewSessionIdentity creates an identity with a fresh client UUID
func NewSessionIdentity() *SessionIdentity {
	return NewSessionIdentityWithID(uuid.New().String())
}

// NewSessionIdentityWithID creates an identity from an existing client ID
func NewSessionIdentityWithID(clientID string) *SessionIdentity {
	return &SessionIdentity{
		clientID: clientID,
		aliases:  map[string]string{clientID: clientID},
	}
}

// ClientID returns the locally generated ID
func (s *SessionIdentity) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// ServerID returns the server assigned ID, empty until remapped
func (s *SessionIdentity) ServerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverID
}

// Effective returns the ID to attach to outbound messages
func (s *SessionIdentity) Effective() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.serverID != "" {
		return s.serverID
	}
	return s.clientID
}

// Remapped reports whether a server ID has been assigned
func (s *SessionIdentity) Remapped() bool {
	return s.ServerID() != ""
}

// Remap records the server assigned ID. Only the first assignment takes effect;
// it returns true when the mapping changed.
func (s *SessionIdentity) Remap(serverID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverID == "" || serverID == s.clientID || s.serverID != "" {
		return false
	}
	s.serverID = serverID
	s.remapAt = at
	s.aliases[serverID] = s.clientID
	return true
}

// RemappedAt returns when the server ID was assigned
func (s *SessionIdentity) RemappedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remapAt
}

// Resolve maps any known ID (client or server) back to the client ID
func (s *SessionIdentity) Resolve(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clientID, ok := s.aliases[id]
	return clientID, ok
}

// Owns reports whether id belongs to this session
func (s *SessionIdentity) Owns(id string) bool {
	_, ok := s.Resolve(id)
	return ok
}

// Snapshot returns a copy of the identity fields for reporting
func (s *SessionIdentity) Snapshot() IdentitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IdentitySnapshot{ClientID: s.clientID, ServerID: s.serverID, RemappedAt: s.remapAt}
}

// IdentitySnapshot is an immutable view of a SessionIdentity
type IdentitySnapshot struct {
	ClientID   string    `json:"client_id" bson:"client_id"`
	ServerID   string    `json:"server_id,omitempty" bson:"server_id,omitempty"`
	RemappedAt time.Time `json:"remapped_at,omitempty" bson:"remapped_at,omitempty"`
}
