package workflow

import (
	"context"

	"membooth/internal/logging"
	"membooth/internal/session"
	"membooth/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running      bool
	LastError    string
	LastSession  *session.Session
	SessionStats map[session.Status]int
	StageHealth  map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastSession := m.lastSession
	generator := m.generator
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read session stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, 1)
	if generator != nil {
		h := generator.HealthCheck(ctx)
		health[h.Name] = h
	}

	summary := StatusSummary{Running: running, SessionStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastSession != nil {
		copied := *lastSession
		summary.LastSession = &copied
	}
	return summary
}
