package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"membooth/internal/config"
	"membooth/internal/daemon"
	"membooth/internal/generator"
	"membooth/internal/ipc"
	"membooth/internal/logging"
	"membooth/internal/notifications"
	"membooth/internal/session"
	"membooth/internal/workflow"
)

func newDaemonLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logFilePath(cfg)},
	})
}

func logFilePath(cfg *config.Config) string {
	if cfg == nil {
		return "membooth.log"
	}
	return filepath.Join(cfg.Paths.LogDir, "membooth.log")
}

func pidFilePath(cfg *config.Config) string {
	if cfg == nil {
		return "memboothd.pid"
	}
	return filepath.Join(cfg.Paths.LogDir, "memboothd.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	pidPath := pidFilePath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := session.Open(cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	gen := generator.NewGenerator(cfg, store, logger)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, gen, notifier)

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("memboothd shutting down")
	return nil
}
