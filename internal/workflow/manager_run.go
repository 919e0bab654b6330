package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"membooth/internal/logging"
	"membooth/internal/session"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.generator == nil {
		m.mu.Unlock()
		return errors.New("workflow generator not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-manager"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStaleSessions(ctx, logger); err != nil {
			logger.Warn("reclaim stale generating failed; interrupted sessions may linger",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check session database access"),
			)
		}

		sess, err := m.store.NextForStatuses(ctx, session.StatusReady)
		if err != nil {
			m.handleNextSessionError(ctx, logger, err)
			continue
		}
		if sess == nil {
			m.waitForSessionOrShutdown(ctx)
			continue
		}

		if err := m.processSession(ctx, logger, sess); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) handleNextSessionError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch next session",
		logging.Error(err),
		logging.String(logging.FieldEventType, "session_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check session database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForSessionOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
