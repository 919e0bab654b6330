package workflow_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"membooth/internal/config"
	"membooth/internal/logging"
	"membooth/internal/services"
	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/testsupport"
	"membooth/internal/workflow"
)

type stubStage struct {
	name        string
	executions  atomic.Int32
	prepareHook func(*session.Session)
	executeHook func(*session.Session)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, sess *session.Session) error {
	if s.prepareHook != nil {
		s.prepareHook(sess)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, sess *session.Session) error {
	s.executions.Add(1)
	if s.executeHook != nil {
		s.executeHook(sess)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	return cfg
}

func queueSession(t *testing.T, store *session.Store, ctx context.Context) *session.Session {
	t.Helper()
	sess := testsupport.NewSession(t, store, session.TypePhoto)
	sess.Status = session.StatusCaptured
	sess.CapturedAsset = "data:image/png;base64,AAAA"
	sess.StyleID = "batik"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.MarkReady(ctx, sess.ID); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	return sess
}

func waitForStatus(t *testing.T, store *session.Store, ctx context.Context, id int64, want session.Status) *session.Session {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s status", want)
		default:
		}
		updated, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated != nil && updated.Status == want {
			return updated
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesQueuedSession(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generator := newStubStage("generator")
	generator.executeHook = func(sess *session.Session) {
		sess.SetCompleted("data:image/png;base64,BBBB", "image/png")
	}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), generator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	sess := queueSession(t, store, ctx)
	updated := waitForStatus(t, store, ctx, sess.ID, session.StatusCompleted)

	if updated.GeneratedAsset != "data:image/png;base64,BBBB" {
		t.Fatalf("expected stored artifact, got %#v", updated)
	}
	if generator.executions.Load() != 1 {
		t.Fatalf("expected exactly one execution, got %d", generator.executions.Load())
	}
}

func TestManagerRunsEachSessionOnce(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generator := newStubStage("generator")
	generator.executeHook = func(sess *session.Session) {
		sess.SetCompleted("data:image/png;base64,BBBB", "image/png")
	}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), generator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	first := queueSession(t, store, ctx)
	second := queueSession(t, store, ctx)
	waitForStatus(t, store, ctx, first.ID, session.StatusCompleted)
	waitForStatus(t, store, ctx, second.ID, session.StatusCompleted)

	// Let the poll loop spin a few more cycles to catch double execution.
	time.Sleep(100 * time.Millisecond)
	if got := generator.executions.Load(); got != 2 {
		t.Fatalf("expected one execution per session, got %d", got)
	}
}

func TestManagerFailureRecordsKindAndMessage(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generator := newStubStage("generator")
	generator.executeErr = services.Wrap(services.ErrTimeout, "stylegen", "generate", "no response within 2m0s", nil)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), generator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	sess := queueSession(t, store, ctx)
	updated := waitForStatus(t, store, ctx, sess.ID, session.StatusFailed)

	if updated.FailureKind != string(services.KindTimeout) {
		t.Fatalf("expected timeout failure kind, got %q", updated.FailureKind)
	}
	if updated.ErrorMessage == "" {
		t.Fatal("expected error message to be populated")
	}
	if updated.ProgressStage != "Failed" {
		t.Fatalf("expected progress stage 'Failed', got %s", updated.ProgressStage)
	}
}

func TestManagerPrepareFailureFailsSession(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generator := newStubStage("generator")
	generator.prepareErr = fmt.Errorf("boom")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), generator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	sess := queueSession(t, store, ctx)
	updated := waitForStatus(t, store, ctx, sess.ID, session.StatusFailed)

	if generator.executions.Load() != 0 {
		t.Fatal("execute must not run after a failed prepare")
	}
	if updated.ErrorMessage == "" {
		t.Fatal("expected error message to be populated")
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	generator := newStubStage("generator")
	generator.health = stage.Degraded(generator.name, "no endpoints configured")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), generator, nil)

	status := mgr.Status(context.Background())
	health, ok := status.StageHealth[generator.name]
	if !ok {
		t.Fatalf("expected stage health entry for %s", generator.name)
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != generator.health.Detail {
		t.Fatalf("expected detail %q, got %q", generator.health.Detail, health.Detail)
	}
}
