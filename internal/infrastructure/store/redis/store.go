// Package redis provides the Redis conversation store implementation.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chatembed/session-service/internal/core/store"
)

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
	// TTL bounds how long an idle conversation survives. Zero keeps
	// conversations until an explicit clear.
	TTL time.Duration
}

// Store implements the store.Store interface for Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis conversation store.
func NewStore(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{
		client: client,
		ttl:    cfg.TTL,
	}, nil
}

// Load retrieves the persisted state for a conversation.
// Returns nil (not an error) when nothing is stored; a corrupted entry is
// dropped and treated as absent rather than failing session start.
func (s *Store) Load(ctx context.Context, flowID, chatID string) (*store.ConversationState, error) {
	key := store.ConversationKey(flowID, chatID)

	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var state store.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Str("key", key).Err(err).Msg("dropping corrupted conversation state")
		_ = s.client.Del(ctx, key).Err()
		return nil, nil
	}

	return &state, nil
}

// Save overwrites the persisted state for a conversation.
func (s *Store) Save(ctx context.Context, flowID string, state *store.ConversationState) error {
	if state == nil {
		return fmt.Errorf("state is required")
	}
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}

	key := store.ConversationKey(flowID, state.ChatID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes the persisted state for one conversation.
func (s *Store) Delete(ctx context.Context, flowID, chatID string) error {
	key := store.ConversationKey(flowID, chatID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// SetFlag stores a named boolean flag for a flow.
func (s *Store) SetFlag(ctx context.Context, flowID, name string, value bool, ttl time.Duration) error {
	key := store.FlagKey(flowID, name)
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set flag %s: %w", key, err)
	}
	return nil
}

// GetFlag retrieves a named flag, defaulting to false when unset.
func (s *Store) GetFlag(ctx context.Context, flowID, name string) (bool, error) {
	key := store.FlagKey(flowID, name)
	value, err := s.client.Get(ctx, key).Bool()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get flag %s: %w", key, err)
	}
	return value, nil
}

// Ping checks if the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing purposes).
func (s *Store) GetClient() *redis.Client {
	return s.client
}
