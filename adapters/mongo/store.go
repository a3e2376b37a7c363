// Package mongo persists session history in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Store owns the MongoDB connection backing the session journal
type Store struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *zap.Logger
}

// Connect dials uri and verifies the server is reachable
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName("arunika-voiceclient").
		SetMaxPoolSize(4).
		SetMinPoolSize(1).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to session journal database", zap.String("database", database))
	return &Store{
		client:   client,
		database: client.Database(database),
		logger:   logger,
	}, nil
}

// Journal returns the session journal stored in this database
func (s *Store) Journal() *Journal {
	return NewJournal(s.database)
}

// Drop removes the database. Used by integration tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.database.Drop(ctx)
}

// Close disconnects from the server
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		s.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	return nil
}
