package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

const (
	identitiesCollection  = "session_identities"
	transitionsCollection = "session_transitions"
)

var _ repositories.SessionJournal = (*Journal)(nil)

// Journal persists session identity and state history in MongoDB
type Journal struct {
	identities  *mongo.Collection
	transitions *mongo.Collection
}

// NewJournal creates a new MongoDB session journal
func NewJournal(db *mongo.Database) *Journal {
	return &Journal{
		identities:  db.Collection(identitiesCollection),
		transitions: db.Collection(transitionsCollection),
	}
}

// EnsureIndexes creates the lookup indexes used by Transitions
func (j *Journal) EnsureIndexes(ctx context.Context) error {
	_, err := j.identities.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "server_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create identity index: %w", err)
	}
	_, err = j.transitions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create transition index: %w", err)
	}
	return nil
}

// RecordIdentity implements repositories.SessionJournal
func (j *Journal) RecordIdentity(ctx context.Context, identity entities.IdentitySnapshot) error {
	if identity.ClientID == "" {
		return errors.New("client session ID cannot be empty")
	}

	_, err := j.identities.UpdateOne(
		ctx,
		bson.M{"_id": identity.ClientID},
		bson.M{"$set": identity},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to record identity: %w", err)
	}
	return nil
}

// RecordTransition implements repositories.SessionJournal
func (j *Journal) RecordTransition(ctx context.Context, transition entities.Transition) error {
	if transition.SessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if _, err := j.transitions.InsertOne(ctx, transition); err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// Transitions implements repositories.SessionJournal. A server ID resolves
// to the client session it was mapped to.
func (j *Journal) Transitions(ctx context.Context, sessionID string) ([]entities.Transition, error) {
	id, err := j.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cursor, err := j.transitions.Find(ctx, bson.M{"session_id": id}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find transitions for session %s: %w", sessionID, err)
	}
	defer cursor.Close(ctx)

	history := []entities.Transition{}
	if err := cursor.All(ctx, &history); err != nil {
		return nil, fmt.Errorf("failed to decode transitions: %w", err)
	}
	return history, nil
}

func (j *Journal) resolve(ctx context.Context, sessionID string) (string, error) {
	var identity entities.IdentitySnapshot
	err := j.identities.FindOne(ctx, bson.M{"server_id": sessionID}).Decode(&identity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return sessionID, nil
		}
		return "", fmt.Errorf("failed to resolve session %s: %w", sessionID, err)
	}
	return identity.ClientID, nil
}
