package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"membooth/internal/config"
	"membooth/internal/notifications"
	"membooth/internal/session"
	"membooth/internal/stage"
)

// Manager coordinates session processing: it watches for queued sessions,
// claims them, and runs the generation stage against each one.
type Manager struct {
	cfg          *config.Config
	store        *session.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service
	generator    stage.Handler

	heartbeat *HeartbeatMonitor

	mu          sync.RWMutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastErr     error
	lastSession *session.Session
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *session.Store, logger *slog.Logger, generator stage.Handler) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, generator, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *session.Store, logger *slog.Logger, generator stage.Handler, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		generator:    generator,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastSession(sess *session.Session) {
	m.mu.Lock()
	if sess != nil {
		copied := *sess
		m.lastSession = &copied
	} else {
		m.lastSession = nil
	}
	m.mu.Unlock()
}
