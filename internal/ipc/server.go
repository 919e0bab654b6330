package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"sync"

	"membooth/internal/api"
	"membooth/internal/daemon"
	"membooth/internal/logging"
	"membooth/internal/session"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Membooth", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually before the next start"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.DatabasePath = status.DatabasePath
	resp.ShareAvailable = status.ShareAvailable
	resp.SessionStats = api.MergeSessionStats(status.Workflow.SessionStats)
	resp.LastError = status.Workflow.LastError
	if status.Workflow.LastSession != nil {
		last := api.FromSession(status.Workflow.LastSession)
		resp.LastSession = &last
	}
	if len(status.Workflow.StageHealth) > 0 {
		names := make([]string, 0, len(status.Workflow.StageHealth))
		for name := range status.Workflow.StageHealth {
			names = append(names, name)
		}
		sort.Strings(names)
		resp.StageHealth = make([]StageHealth, 0, len(names))
		for _, name := range names {
			health := status.Workflow.StageHealth[name]
			resp.StageHealth = append(resp.StageHealth, StageHealth{
				Name:   name,
				Ready:  health.Ready,
				Detail: health.Detail,
			})
		}
	}
	return nil
}

func (s *service) SessionList(req SessionListRequest, resp *SessionListResponse) error {
	statuses := make([]session.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := session.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	sessions, err := s.daemon.ListSessions(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Sessions = api.FromSessions(sessions)
	return nil
}

func (s *service) SessionDescribe(req SessionDescribeRequest, resp *SessionDescribeResponse) error {
	if req.Token == "" {
		return errors.New("session describe requires a token")
	}
	sess, err := s.daemon.Store().GetByToken(s.ctx, req.Token)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %q not found", req.Token)
	}
	resp.Session = api.FromSession(sess)
	return nil
}

func (s *service) SessionClear(_ SessionClearRequest, resp *SessionClearResponse) error {
	s.log().Debug("session clear requested")
	if err := s.daemon.ClearSessions(s.ctx); err != nil {
		return err
	}
	resp.Cleared = true
	s.log().Info("sessions cleared",
		logging.String(logging.FieldEventType, "session_clear"))
	return nil
}

func (s *service) SessionClearCompleted(_ SessionClearCompletedRequest, resp *SessionClearCompletedResponse) error {
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("completed sessions cleared",
		logging.String(logging.FieldEventType, "session_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) SessionClearFailed(_ SessionClearFailedRequest, resp *SessionClearFailedResponse) error {
	removed, err := s.daemon.ClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("failed sessions cleared",
		logging.String(logging.FieldEventType, "session_clear_failed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) SessionReset(_ SessionResetRequest, resp *SessionResetResponse) error {
	updated, err := s.daemon.ResetStuck(s.ctx)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("stuck sessions reset",
		logging.String(logging.FieldEventType, "session_reset_stuck"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) SessionRetry(req SessionRetryRequest, resp *SessionRetryResponse) error {
	if req.Token != "" {
		retried, err := s.daemon.RetrySession(s.ctx, req.Token)
		if err != nil {
			return err
		}
		if retried {
			resp.Updated = 1
		}
	} else {
		updated, err := s.daemon.RetryFailed(s.ctx)
		if err != nil {
			return err
		}
		resp.Updated = updated
	}
	s.log().Info("failed sessions retried",
		logging.String(logging.FieldEventType, "session_retry"),
		logging.Int64("updated_count", resp.Updated))
	return nil
}

func (s *service) SessionRemove(req SessionRemoveRequest, resp *SessionRemoveResponse) error {
	if req.Token == "" {
		return errors.New("session remove requires a token")
	}
	removed, err := s.daemon.DeleteSession(s.ctx, req.Token)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) SessionHealth(_ SessionHealthRequest, resp *SessionHealthResponse) error {
	health, err := s.daemon.SessionHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Pending = health.Pending
	resp.Captured = health.Captured
	resp.Queued = health.Queued
	resp.Generating = health.Generating
	resp.Completed = health.Completed
	resp.Failed = health.Failed
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
