package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"membooth/internal/daemon"
	"membooth/internal/ipc"
	"membooth/internal/logging"
	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/testsupport"
	"membooth/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *session.Session) error { return nil }
func (noopStage) Execute(context.Context, *session.Session) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop")
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, noopStage{})
	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.PID == 0 {
		t.Fatal("expected status to include a PID")
	}

	sessA := testsupport.NewSession(t, store, session.TypePhoto)
	sessB := testsupport.NewSession(t, store, session.TypeAudio)
	sessB.Status = session.StatusCaptured
	sessB.CapturedAsset = testsupport.CaptureDataURL(t)
	sessB.SetFailed("network", "endpoint unreachable")
	if err := store.Update(ctx, sessB); err != nil {
		t.Fatalf("Update sessB: %v", err)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopResp)
	}

	listResp, err := client.SessionList(nil)
	if err != nil {
		t.Fatalf("SessionList failed: %v", err)
	}
	if len(listResp.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(listResp.Sessions))
	}

	failedResp, err := client.SessionList([]string{string(session.StatusFailed)})
	if err != nil {
		t.Fatalf("SessionList failed filter: %v", err)
	}
	if len(failedResp.Sessions) != 1 || failedResp.Sessions[0].Token != sessB.Token {
		t.Fatalf("unexpected failed filter result: %#v", failedResp.Sessions)
	}

	describeResp, err := client.SessionDescribe(sessA.Token)
	if err != nil {
		t.Fatalf("SessionDescribe failed: %v", err)
	}
	if describeResp.Session.MementoType != string(session.TypePhoto) {
		t.Fatalf("unexpected memento type %q", describeResp.Session.MementoType)
	}

	retryResp, err := client.SessionRetry(sessB.Token)
	if err != nil {
		t.Fatalf("SessionRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried session, got %d", retryResp.Updated)
	}

	healthResp, err := client.SessionHealth()
	if err != nil {
		t.Fatalf("SessionHealth failed: %v", err)
	}
	if healthResp.Total != 2 {
		t.Fatalf("expected 2 total sessions, got %d", healthResp.Total)
	}

	removeResp, err := client.SessionRemove(sessA.Token)
	if err != nil {
		t.Fatalf("SessionRemove failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected session to be removed")
	}

	clearResp, err := client.SessionClear()
	if err != nil {
		t.Fatalf("SessionClear failed: %v", err)
	}
	if !clearResp.Cleared {
		t.Fatal("expected clear to succeed")
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent {
		t.Fatal("expected notification to be skipped without an ntfy topic")
	}
}
