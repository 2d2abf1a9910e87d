package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatembed/session-service/internal/core/store"
	"github.com/chatembed/session-service/internal/domain/models"
	"github.com/chatembed/session-service/internal/infrastructure/store/memory"
)

func TestSaveAndLoad(t *testing.T) {
	s := memory.NewStore(0)
	ctx := context.Background()

	state := &store.ConversationState{
		ChatID: "chat-1",
		ChatHistory: []models.Message{
			models.NewMessage(models.RoleUser, "hello"),
		},
	}
	require.NoError(t, s.Save(ctx, "flow-1", state))

	loaded, err := s.Load(ctx, "flow-1", "chat-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "chat-1", loaded.ChatID)
	require.Len(t, loaded.ChatHistory, 1)
	assert.Equal(t, "hello", loaded.ChatHistory[0].Text)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	s := memory.NewStore(0)

	loaded, err := s.Load(context.Background(), "flow-1", "absent")

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveIsolatesCallerState(t *testing.T) {
	s := memory.NewStore(0)
	ctx := context.Background()

	state := &store.ConversationState{
		ChatID:      "chat-1",
		ChatHistory: []models.Message{models.NewMessage(models.RoleUser, "original")},
	}
	require.NoError(t, s.Save(ctx, "flow-1", state))

	// Mutating the caller's copy after Save must not leak into the store.
	state.ChatHistory[0].Text = "mutated"

	loaded, err := s.Load(ctx, "flow-1", "chat-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "original", loaded.ChatHistory[0].Text)
}

func TestExpiredEntriesAreAbsent(t *testing.T) {
	s := memory.NewStore(time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "flow-1", &store.ConversationState{ChatID: "chat-1"}))
	time.Sleep(5 * time.Millisecond)

	loaded, err := s.Load(ctx, "flow-1", "chat-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestDeleteScopedToConversation(t *testing.T) {
	s := memory.NewStore(0)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "flow-1", &store.ConversationState{ChatID: "chat-1"}))
	require.NoError(t, s.Save(ctx, "flow-1", &store.ConversationState{ChatID: "chat-2"}))
	require.NoError(t, s.Save(ctx, "flow-2", &store.ConversationState{ChatID: "chat-1"}))

	require.NoError(t, s.Delete(ctx, "flow-1", "chat-1"))

	loaded, err := s.Load(ctx, "flow-1", "chat-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	loaded, err = s.Load(ctx, "flow-1", "chat-2")
	require.NoError(t, err)
	assert.NotNil(t, loaded)

	loaded, err = s.Load(ctx, "flow-2", "chat-1")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

func TestFlags(t *testing.T) {
	s := memory.NewStore(0)
	ctx := context.Background()

	value, err := s.GetFlag(ctx, "flow-1", "chatbotDisclaimer")
	require.NoError(t, err)
	assert.False(t, value)

	require.NoError(t, s.SetFlag(ctx, "flow-1", "chatbotDisclaimer", true, time.Hour))

	value, err = s.GetFlag(ctx, "flow-1", "chatbotDisclaimer")
	require.NoError(t, err)
	assert.True(t, value)
}
