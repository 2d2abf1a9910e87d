package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatembed/session-service/internal/core/store"
	"github.com/chatembed/session-service/internal/domain/errors"
	"github.com/chatembed/session-service/internal/services/prediction"
)

// ManagerConfig carries the shared dependencies handed to every controller
// the manager creates.
type ManagerConfig struct {
	Backend *prediction.Client
	Store   store.Store

	CustomerID     string
	WelcomeMessage string
	ErrorMessage   string
	OverrideConfig map[string]any
	SettlingDelay  time.Duration
	ClearOnStart   bool

	Logger zerolog.Logger
}

// Manager hands out one live controller per (flowId, chatId) pair. A
// controller is mounted on first use and reused for the rest of its
// conversation's lifetime.
type Manager struct {
	mu       sync.Mutex
	cfg      ManagerConfig
	log      zerolog.Logger
	sessions map[string]*Controller
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, errors.NewInternalError("prediction backend is required", nil)
	}
	if cfg.Store == nil {
		return nil, errors.NewInternalError("conversation store is required", nil)
	}

	return &Manager{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "session-manager").Logger(),
		sessions: map[string]*Controller{},
	}, nil
}

// GetOrCreate returns the live controller for the conversation, mounting a
// new one when none exists. An empty chatID starts a fresh conversation;
// its generated id becomes part of the session key.
func (m *Manager) GetOrCreate(ctx context.Context, flowID, chatID string) (*Controller, error) {
	if flowID == "" {
		return nil, errors.NewValidationError("flow id is required", "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if chatID != "" {
		if ctrl, ok := m.sessions[sessionKey(flowID, chatID)]; ok {
			return ctrl, nil
		}
	}

	ctrl, err := NewController(Config{
		FlowID:         flowID,
		ChatID:         chatID,
		CustomerID:     m.cfg.CustomerID,
		Backend:        m.cfg.Backend,
		Store:          m.cfg.Store,
		WelcomeMessage: m.cfg.WelcomeMessage,
		ErrorMessage:   m.cfg.ErrorMessage,
		OverrideConfig: m.cfg.OverrideConfig,
		SettlingDelay:  m.cfg.SettlingDelay,
		ClearOnStart:   m.cfg.ClearOnStart,
		Logger:         m.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := ctrl.Mount(ctx); err != nil {
		return nil, err
	}

	m.sessions[sessionKey(flowID, ctrl.ChatID())] = ctrl
	m.log.Info().Str("flowId", flowID).Str("chatId", ctrl.ChatID()).Msg("Session mounted")
	return ctrl, nil
}

// Get returns the live controller for the conversation, if one is mounted.
func (m *Manager) Get(flowID, chatID string) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.sessions[sessionKey(flowID, chatID)]
	return ctrl, ok
}

// Remove unmounts a conversation's controller. In-flight turns finish
// against the detached controller; its final write-through still lands in
// the store.
func (m *Manager) Remove(flowID, chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(flowID, chatID))
}

// Rekey moves a mounted controller under a new chat id after the backend
// assigns its own conversation id mid-turn.
func (m *Manager) Rekey(flowID, oldChatID, newChatID string) {
	if oldChatID == newChatID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctrl, ok := m.sessions[sessionKey(flowID, oldChatID)]; ok {
		delete(m.sessions, sessionKey(flowID, oldChatID))
		m.sessions[sessionKey(flowID, newChatID)] = ctrl
	}
}

// Shutdown unmounts every live controller. In-flight streams are cancelled;
// persisted state stays in the store.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Controller{}
	m.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Unmount()
	}
	m.log.Info().Int("sessions", len(sessions)).Msg("Session manager shut down")
}

// Len reports the number of mounted sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func sessionKey(flowID, chatID string) string {
	return flowID + "/" + chatID
}
