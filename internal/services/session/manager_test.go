package session_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatembed/session-service/internal/infrastructure/store/memory"
	"github.com/chatembed/session-service/internal/services/prediction"
	"github.com/chatembed/session-service/internal/services/session"
)

func newTestManager(t *testing.T, stub *backendStub) *session.Manager {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	client, err := prediction.NewClient(&prediction.Config{APIHost: server.URL})
	require.NoError(t, err)

	manager, err := session.NewManager(session.ManagerConfig{
		Backend:       client,
		Store:         memory.NewStore(0),
		SettlingDelay: time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return manager
}

func TestManagerGetOrCreate(t *testing.T) {
	manager := newTestManager(t, &backendStub{})
	ctx := context.Background()

	ctrl, err := manager.GetOrCreate(ctx, "flow-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, ctrl.ChatID())
	assert.Equal(t, 1, manager.Len())

	// Same conversation id returns the same live controller.
	again, err := manager.GetOrCreate(ctx, "flow-1", ctrl.ChatID())
	require.NoError(t, err)
	assert.Same(t, ctrl, again)
	assert.Equal(t, 1, manager.Len())

	// A different flow mounts a separate controller.
	other, err := manager.GetOrCreate(ctx, "flow-2", "")
	require.NoError(t, err)
	assert.NotSame(t, ctrl, other)
	assert.Equal(t, 2, manager.Len())
}

func TestManagerRequiresFlowID(t *testing.T) {
	manager := newTestManager(t, &backendStub{})

	_, err := manager.GetOrCreate(context.Background(), "", "chat-1")

	assert.Error(t, err)
}

func TestManagerRekey(t *testing.T) {
	manager := newTestManager(t, &backendStub{})
	ctx := context.Background()

	ctrl, err := manager.GetOrCreate(ctx, "flow-1", "")
	require.NoError(t, err)
	oldID := ctrl.ChatID()

	manager.Rekey("flow-1", oldID, "backend-assigned-id")

	_, ok := manager.Get("flow-1", oldID)
	assert.False(t, ok)
	moved, ok := manager.Get("flow-1", "backend-assigned-id")
	require.True(t, ok)
	assert.Same(t, ctrl, moved)
}

func TestManagerRemove(t *testing.T) {
	manager := newTestManager(t, &backendStub{})
	ctx := context.Background()

	ctrl, err := manager.GetOrCreate(ctx, "flow-1", "")
	require.NoError(t, err)

	manager.Remove("flow-1", ctrl.ChatID())

	_, ok := manager.Get("flow-1", ctrl.ChatID())
	assert.False(t, ok)
	assert.Equal(t, 0, manager.Len())
}

func TestManagerShutdown(t *testing.T) {
	manager := newTestManager(t, &backendStub{})
	ctx := context.Background()

	_, err := manager.GetOrCreate(ctx, "flow-1", "")
	require.NoError(t, err)
	_, err = manager.GetOrCreate(ctx, "flow-2", "")
	require.NoError(t, err)

	manager.Shutdown()

	assert.Equal(t, 0, manager.Len())
}
