package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"membooth/internal/config"
	"membooth/internal/ipc"
	"membooth/internal/session"
)

const daemonStartTimeout = 10 * time.Second

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the membooth daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if client, err := ctx.dialClient(); err == nil {
				client.Close()
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := launchDaemon(exe, ctx); err != nil {
				return err
			}
			if err := waitForSocket(ctx.socketPath(), daemonStartTimeout); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the membooth daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			defer client.Close()

			if _, err := client.Stop(); err != nil {
				return fmt.Errorf("stop daemon workflow: %w", err)
			}
			fmt.Fprintln(stdout, "Stopping daemon workflow...")

			if pid, ok := readPIDFile(ctx.configValue()); ok {
				if err := syscall.Kill(pid, syscall.SIGTERM); err == nil {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", pid)
				}
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			client, err := ctx.dialClient()
			if err != nil {
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusError, "not running", colorize))
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("daemon status: %w", err)
			}
			renderDaemonStatus(stdout, status, colorize)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderDaemonStatus(stdout io.Writer, status *ipc.StatusResponse, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	runKind := statusError
	runDetail := "stopped"
	if status.Running {
		runKind = statusOK
		runDetail = fmt.Sprintf("running (pid %d)", status.PID)
	}
	fmt.Fprintln(stdout, renderStatusLine("Workflow", runKind, runDetail, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Sharing", statusInfo, yesNo(status.ShareAvailable), colorize))
	if status.LastError != "" {
		fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Generation Services", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if len(status.StageHealth) == 0 {
		fmt.Fprintln(stdout, renderStatusLine("Generator", statusWarn, "no health reported", colorize))
	}
	for _, health := range status.StageHealth {
		kind := statusOK
		detail := "ready"
		if !health.Ready {
			kind = statusWarn
			detail = health.Detail
		}
		fmt.Fprintln(stdout, renderStatusLine(health.Name, kind, detail, colorize))
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Sessions", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildSessionStatsRows(status.SessionStats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No sessions recorded")
		return
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintln(stdout)
}

// buildSessionStatsRows orders stats by workflow progression, then appends
// any unknown statuses alphabetically.
func buildSessionStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for _, status := range session.AllStatuses() {
		if count, ok := stats[string(status)]; ok {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
			seen[string(status)] = struct{}{}
		}
	}
	rest := make([]string, 0)
	for name := range stats {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		rows = append(rows, []string{name, strconv.Itoa(stats[name])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "memboothd")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	path, err := exec.LookPath("memboothd")
	if err != nil {
		return "", fmt.Errorf("locate memboothd binary: %w", err)
	}
	return path, nil
}

func launchDaemon(exe string, ctx *commandContext) error {
	var args []string
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			args = append(args, "--config", path)
		}
	}
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return cmd.Process.Release()
}

func waitForSocket(path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(path)
		if err == nil {
			client.Close()
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become ready within %s", timeout)
}

func readPIDFile(cfg *config.Config) (int, bool) {
	if cfg == nil {
		return 0, false
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "memboothd.pid"))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
