package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// TestJournal_Integration requires a running MongoDB instance (skipped if
// MONGODB_URI is not set)
func TestJournal_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	store, err := Connect(ctx, mongoURI, "arunika_test", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		store.Drop(ctx)
		store.Close(ctx)
	}()

	journal := store.Journal()
	if err := journal.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("TransitionsOldestFirst", func(t *testing.T) {
		for i, state := range []entities.SessionState{entities.SessionStateListening, entities.SessionStateIdle} {
			err := journal.RecordTransition(ctx, entities.Transition{
				SessionID: "client-a",
				Current:   state,
				At:        base.Add(time.Duration(1-i) * time.Second),
			})
			if err != nil {
				t.Fatalf("Failed to record transition: %v", err)
			}
		}

		history, err := journal.Transitions(ctx, "client-a")
		if err != nil {
			t.Fatalf("Failed to load transitions: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("Expected 2 transitions, got %d", len(history))
		}
		if history[0].Current != entities.SessionStateIdle {
			t.Errorf("Expected first state %s, got %s", entities.SessionStateIdle, history[0].Current)
		}
	})

	t.Run("ServerIDResolvesToClient", func(t *testing.T) {
		err := journal.RecordTransition(ctx, entities.Transition{SessionID: "client-b", Current: entities.SessionStateWaiting, At: base})
		if err != nil {
			t.Fatalf("Failed to record transition: %v", err)
		}
		err = journal.RecordIdentity(ctx, entities.IdentitySnapshot{ClientID: "client-b", ServerID: "server-b", RemappedAt: base})
		if err != nil {
			t.Fatalf("Failed to record identity: %v", err)
		}

		history, err := journal.Transitions(ctx, "server-b")
		if err != nil {
			t.Fatalf("Failed to load transitions: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("Expected 1 transition, got %d", len(history))
		}
	})

	t.Run("UnknownSessionIsEmpty", func(t *testing.T) {
		history, err := journal.Transitions(ctx, "missing")
		if err != nil {
			t.Fatalf("Failed to load transitions: %v", err)
		}
		if len(history) != 0 {
			t.Errorf("Expected no transitions, got %d", len(history))
		}
	})
}
