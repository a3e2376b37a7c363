package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

func TestJournalTransitionsInOrder(t *testing.T) {
	j := NewJournal()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, j.RecordTransition(ctx, entities.Transition{
		SessionID: "client-1", Previous: entities.SessionStateIdle, Current: entities.SessionStateListening, At: now,
	}))
	require.NoError(t, j.RecordTransition(ctx, entities.Transition{
		SessionID: "client-1", Previous: entities.SessionStateListening, Current: entities.SessionStateProcessing, At: now.Add(time.Second),
	}))
	require.NoError(t, j.RecordTransition(ctx, entities.Transition{
		SessionID: "client-2", Previous: entities.SessionStateIdle, Current: entities.SessionStateError, At: now,
	}))

	history, err := j.Transitions(ctx, "client-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, entities.SessionStateListening, history[0].Current)
	require.Equal(t, entities.SessionStateProcessing, history[1].Current)

	// The returned slice is a copy.
	history[0].Reason = "changed"
	again, err := j.Transitions(ctx, "client-1")
	require.NoError(t, err)
	require.Empty(t, again[0].Reason)
}

func TestJournalResolvesServerID(t *testing.T) {
	j := NewJournal()
	ctx := context.Background()

	require.NoError(t, j.RecordIdentity(ctx, entities.IdentitySnapshot{ClientID: "client-1", ServerID: "server-9", RemappedAt: time.Now()}))
	require.NoError(t, j.RecordTransition(ctx, entities.Transition{SessionID: "client-1", Current: entities.SessionStateWaiting}))

	history, err := j.Transitions(ctx, "server-9")
	require.NoError(t, err)
	require.Len(t, history, 1)

	identity, ok := j.Identity("client-1")
	require.True(t, ok)
	require.Equal(t, "server-9", identity.ServerID)

	empty, err := j.Transitions(ctx, "unknown")
	require.NoError(t, err)
	require.Empty(t, empty)
}
