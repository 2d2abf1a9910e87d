// Package memory provides an in-process conversation store, used when no
// external store is configured and as the default for tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chatembed/session-service/internal/core/store"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// Store implements the store.Store interface in process memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// NewStore creates a new in-memory conversation store. A zero ttl keeps
// conversations until an explicit clear.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Load retrieves the persisted state for a conversation.
func (s *Store) Load(ctx context.Context, flowID, chatID string) (*store.ConversationState, error) {
	s.mu.RLock()
	e, ok := s.entries[store.ConversationKey(flowID, chatID)]
	s.mu.RUnlock()
	if !ok || e.expired() {
		return nil, nil
	}

	var state store.ConversationState
	if err := json.Unmarshal(e.data, &state); err != nil {
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

	s.mu.Lock()
	s.entries[store.ConversationKey(flowID, state.ChatID)] = entry{
		data:      data,
		expiresAt: expiry(s.ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete removes the persisted state for one conversation.
func (s *Store) Delete(ctx context.Context, flowID, chatID string) error {
	s.mu.Lock()
	delete(s.entries, store.ConversationKey(flowID, chatID))
	s.mu.Unlock()
	return nil
}

// SetFlag stores a named boolean flag for a flow.
func (s *Store) SetFlag(ctx context.Context, flowID, name string, value bool, ttl time.Duration) error {
	data, _ := json.Marshal(value)

	s.mu.Lock()
	s.entries[store.FlagKey(flowID, name)] = entry{
		data:      data,
		expiresAt: expiry(ttl),
	}
	s.mu.Unlock()
	return nil
}

// GetFlag retrieves a named flag, defaulting to false when unset.
func (s *Store) GetFlag(ctx context.Context, flowID, name string) (bool, error) {
	s.mu.RLock()
	e, ok := s.entries[store.FlagKey(flowID, name)]
	s.mu.RUnlock()
	if !ok || e.expired() {
		return false, nil
	}

	var value bool
	if err := json.Unmarshal(e.data, &value); err != nil {
		return false, nil
	}
	return value, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close releases the stored entries.
func (s *Store) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl == 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
