package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"membooth/internal/config"
	"membooth/internal/logging"
	"membooth/internal/notifications"
	"membooth/internal/session"
	"membooth/internal/workflow"
)

// Daemon coordinates the background generation workflow, the kiosk HTTP API,
// and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *session.Store
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	httpServer *httpServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	Workflow       workflow.StatusSummary
	DatabasePath   string
	LockFilePath   string
	ShareAvailable bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	server, err := newHTTPServer(cfg, d, logger)
	if err != nil {
		return nil, fmt.Errorf("configure http server: %w", err)
	}
	d.httpServer = server
	return d, nil
}

// Start launches the workflow manager and HTTP API and acquires the daemon lock.
// Sessions left mid-generation by a previous run are requeued before the
// workflow starts so a crash never strands a visitor on the processing screen.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another membooth daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if reset, err := d.store.ResetStuckGenerating(d.ctx); err != nil {
		d.logger.Warn("reset stuck sessions failed", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("requeued sessions from previous run", logging.Int64("count", reset))
	}

	if err := d.workflow.Start(d.ctx); err != nil {
		d.releaseAfterFailedStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.httpServer.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.releaseAfterFailedStart()
		return fmt.Errorf("start http server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("membooth daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) releaseAfterFailedStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.httpServer.stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("membooth daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Store exposes the session store for API service construction.
func (d *Daemon) Store() *session.Store {
	return d.store
}

// ListSessions returns sessions filtered by optional statuses.
func (d *Daemon) ListSessions(ctx context.Context, statuses []session.Status) ([]*session.Session, error) {
	if d.store == nil {
		return nil, errors.New("session store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// DeleteSession removes a single session by token.
func (d *Daemon) DeleteSession(ctx context.Context, token string) (bool, error) {
	if d.store == nil {
		return false, errors.New("session store unavailable")
	}
	return d.store.Delete(ctx, token)
}

// ClearSessions removes all sessions.
func (d *Daemon) ClearSessions(ctx context.Context) error {
	if d.store == nil {
		return errors.New("session store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed sessions.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("session store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed sessions.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("session store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight sessions back to ready for another attempt.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("session store unavailable")
	}
	return d.store.ResetStuckGenerating(ctx)
}

// RetryFailed moves all failed sessions back to the selection step.
func (d *Daemon) RetryFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("session store unavailable")
	}
	return d.store.RetryFailed(ctx)
}

// RetrySession moves a single failed session back to the selection step.
func (d *Daemon) RetrySession(ctx context.Context, token string) (bool, error) {
	if d.store == nil {
		return false, errors.New("session store unavailable")
	}
	return d.store.RetryByToken(ctx, token)
}

// SessionHealth returns aggregate session diagnostics.
func (d *Daemon) SessionHealth(ctx context.Context) (session.HealthSummary, error) {
	if d.store == nil {
		return session.HealthSummary{}, errors.New("session store unavailable")
	}
	return d.store.Health(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// ShareAvailable reports whether completed mementos can be offered as links.
func (d *Daemon) ShareAvailable() bool {
	return strings.TrimSpace(d.cfg.Booth.ShareBaseURL) != ""
}

// Addr returns the bound HTTP API address, or empty before Start.
func (d *Daemon) Addr() string {
	if d.httpServer == nil {
		return ""
	}
	return d.httpServer.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Workflow:       summary,
		DatabasePath:   d.cfg.DatabasePath(),
		LockFilePath:   d.lockPath,
		ShareAvailable: d.ShareAvailable(),
	}
}
