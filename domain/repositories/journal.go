package repositories

import (
	"context"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// SessionJournal records session identity and state history
type SessionJournal interface {
	// RecordIdentity stores the client/server ID mapping of a session
	RecordIdentity(ctx context.Context, identity entities.IdentitySnapshot) error
	// RecordTransition appends one state change
	RecordTransition(ctx context.Context, transition entities.Transition) error
	// Transitions returns the recorded history of a session, oldest first
	Transitions(ctx context.Context, sessionID string) ([]entities.Transition, error)
}
