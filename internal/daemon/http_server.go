package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"membooth/internal/api"
	"membooth/internal/config"
	"membooth/internal/logging"
	"membooth/internal/music"
	"membooth/internal/styles"
)

type httpServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	sessionSvc *api.SessionService

	listener net.Listener
	server   *http.Server
}

func newHTTPServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*httpServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("http server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.Paths.HTTPBind)
	if bind == "" {
		return nil, errors.New("paths.http_bind is required")
	}

	srv := &httpServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		sessionSvc: api.NewSessionService(d.store),
	}

	router := mux.NewRouter()
	router.Use(authMiddleware(cfg.Paths.APIToken))

	router.HandleFunc("/api/status", srv.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/styles", srv.handleStyles).Methods(http.MethodGet)
	router.HandleFunc("/api/music-categories", srv.handleMusicCategories).Methods(http.MethodGet)

	router.HandleFunc("/api/sessions", srv.handleCreateSession).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions", srv.handleListSessions).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{token}", srv.handleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{token}", srv.handleDeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/api/sessions/{token}/capture", srv.handleCapture).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{token}/capture-failure", srv.handleCaptureFailure).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{token}/selection", srv.handleSelection).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{token}/generate", srv.handleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{token}/retry", srv.handleRetry).Methods(http.MethodPost)
	router.HandleFunc("/api/sessions/{token}/result", srv.handleResult).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{token}/download", srv.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions/{token}/progress", srv.handleProgress).Methods(http.MethodGet)

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv, nil
}

func (s *httpServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("http server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("http api listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *httpServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *httpServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *httpServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		ShareAvailable: status.ShareAvailable,
		Limits: api.CaptureLimits{
			MaxClipSeconds:   s.daemon.cfg.Booth.MaxClipSeconds,
			MaxMontageImages: s.daemon.cfg.Booth.MaxMontageImages,
			MaxUploadBytes:   s.daemon.cfg.Booth.MaxUploadBytes,
		},
		Workflow: api.FromStatusSummary(status.Workflow),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *httpServer) handleStyles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]api.StyleOption{
		"styles": api.StyleOptions(styles.Catalog()),
	})
}

func (s *httpServer) handleMusicCategories(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]api.MusicOption{
		"categories": api.MusicOptions(music.Categories()),
	})
}

func (s *httpServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *httpServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *httpServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "http-api"))
	}
	return logging.NewNop()
}
