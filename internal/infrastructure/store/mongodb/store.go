// Package mongodb provides the MongoDB conversation store implementation.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/chatembed/session-service/internal/core/store"
)

const (
	// ConversationsCollection is the name of the conversations collection.
	ConversationsCollection = "conversations"
	// FlagsCollection is the name of the flow flags collection.
	FlagsCollection = "flow_flags"
)

// conversationDoc is the stored shape of one conversation.
type conversationDoc struct {
	Key    string                  `bson:"_id"`
	FlowID string                  `bson:"flowId"`
	State  store.ConversationState `bson:"state"`
}

// flagDoc is the stored shape of one flow flag.
type flagDoc struct {
	Key       string    `bson:"_id"`
	Value     bool      `bson:"value"`
	ExpiresAt time.Time `bson:"expiresAt,omitempty"`
}

// Config holds MongoDB connection configuration.
type Config struct {
	URI          string
	DatabaseName string
}

// Store implements the store.Store interface for MongoDB.
type Store struct {
	client        *mongo.Client
	conversations *mongo.Collection
	flags         *mongo.Collection
}

// NewStore creates a new MongoDB conversation store.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if cfg.DatabaseName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	clientOpts := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.DatabaseName)
	return &Store{
		client:        client,
		conversations: db.Collection(ConversationsCollection),
		flags:         db.Collection(FlagsCollection),
	}, nil
}

// EnsureIndexes creates the indexes the store queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	// Let MongoDB expire flags at their recorded deadline.
	_, err := s.flags.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create flag expiry index: %w", err)
	}

	return nil
}

// Load retrieves the persisted state for a conversation.
func (s *Store) Load(ctx context.Context, flowID, chatID string) (*store.ConversationState, error) {
	var doc conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": store.ConversationKey(flowID, chatID)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &doc.State, nil
}

// Save overwrites the persisted state for a conversation.
func (s *Store) Save(ctx context.Context, flowID string, state *store.ConversationState) error {
	if state == nil {
		return fmt.Errorf("state is required")
	}
	state.UpdatedAt = time.Now().UTC()

	doc := conversationDoc{
		Key:    store.ConversationKey(flowID, state.ChatID),
		FlowID: flowID,
		State:  *state,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.conversations.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

// Delete removes the persisted state for one conversation.
func (s *Store) Delete(ctx context.Context, flowID, chatID string) error {
	key := store.ConversationKey(flowID, chatID)
	if _, err := s.conversations.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// SetFlag stores a named boolean flag for a flow.
func (s *Store) SetFlag(ctx context.Context, flowID, name string, value bool, ttl time.Duration) error {
	doc := flagDoc{
		Key:   store.FlagKey(flowID, name),
		Value: value,
	}
	if ttl > 0 {
		doc.ExpiresAt = time.Now().UTC().Add(ttl)
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.flags.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("failed to set flag: %w", err)
	}
	return nil
}

// GetFlag retrieves a named flag, defaulting to false when unset.
func (s *Store) GetFlag(ctx context.Context, flowID, name string) (bool, error) {
	var doc flagDoc
	err := s.flags.FindOne(ctx, bson.M{"_id": store.FlagKey(flowID, name)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("failed to get flag: %w", err)
	}
	if !doc.ExpiresAt.IsZero() && time.Now().UTC().After(doc.ExpiresAt) {
		return false, nil
	}
	return doc.Value, nil
}

// Ping verifies the connection to MongoDB.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}
