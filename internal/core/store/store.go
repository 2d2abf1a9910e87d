// Package store defines the conversation store interface and factory types.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chatembed/session-service/internal/domain/models"
)

// ConversationState is the persisted mirror of one conversation, keyed by
// (flow id, chat id). It is always written as a whole, never patched, and
// chat history entries carry only the lean form of file uploads.
type ConversationState struct {
	ChatID      string           `json:"chatId"`
	ChatHistory []models.Message `json:"chatHistory"`
	Lead        *models.Lead     `json:"lead,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Store persists conversation state across session restarts. Implementations
// are passive mirrors: they never initiate mutations.
type Store interface {
	// Load retrieves the persisted state for a conversation.
	// Returns nil if nothing is stored.
	Load(ctx context.Context, flowID, chatID string) (*ConversationState, error)

	// Save overwrites the persisted state for a conversation.
	Save(ctx context.Context, flowID string, state *ConversationState) error

	// Delete removes the persisted state for one conversation. Other
	// conversations under the same flow are untouched.
	Delete(ctx context.Context, flowID, chatID string) error

	// SetFlag stores a named boolean flag for a flow with the given TTL.
	// Used for the one-time disclaimer acknowledgement.
	SetFlag(ctx context.Context, flowID, name string, value bool, ttl time.Duration) error

	// GetFlag retrieves a named flag. Returns false if unset.
	GetFlag(ctx context.Context, flowID, name string) (bool, error)

	// Ping checks if the store connection is alive.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

// ConversationKey builds the storage key for a conversation.
func ConversationKey(flowID, chatID string) string {
	return fmt.Sprintf("chat:%s:%s", flowID, chatID)
}

// FlagKey builds the storage key for a named flow flag.
func FlagKey(flowID, name string) string {
	return fmt.Sprintf("flag:%s:%s", flowID, name)
}
