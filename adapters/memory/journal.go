package memory

import (
	"context"
	"sync"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// Journal keeps session history in process memory
type Journal struct {
	mu          sync.RWMutex
	identities  map[string]entities.IdentitySnapshot
	transitions map[string][]entities.Transition
}

// NewJournal creates an empty journal
func NewJournal() *Journal {
	return &Journal{
		identities:  make(map[string]entities.IdentitySnapshot),
		transitions: make(map[string][]entities.Transition),
	}
}

// RecordIdentity implements repositories.SessionJournal
func (j *Journal) RecordIdentity(ctx context.Context, identity entities.IdentitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.identities[identity.ClientID] = identity
	return nil
}

// RecordTransition implements repositories.SessionJournal
func (j *Journal) RecordTransition(ctx context.Context, transition entities.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions[transition.SessionID] = append(j.transitions[transition.SessionID], transition)
	return nil
}

// Transitions implements repositories.SessionJournal. A server ID resolves
// to the client session it was mapped to.
func (j *Journal) Transitions(ctx context.Context, sessionID string) ([]entities.Transition, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	id := sessionID
	for clientID, identity := range j.identities {
		if identity.ServerID != "" && identity.ServerID == sessionID {
			id = clientID
			break
		}
	}

	history := j.transitions[id]
	out := make([]entities.Transition, len(history))
	copy(out, history)
	return out, nil
}

// Identity returns the last recorded identity of a client session
func (j *Journal) Identity(clientID string) (entities.IdentitySnapshot, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	identity, ok := j.identities[clientID]
	return identity, ok
}
