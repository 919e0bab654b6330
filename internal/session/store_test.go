package session_test

import (
	"context"
	"testing"
	"time"

	"membooth/internal/session"
	"membooth/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess, err := store.NewSession(ctx, session.TypePhoto)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if sess.ID == 0 {
		t.Fatal("expected session ID to be assigned")
	}
	if sess.Token == "" {
		t.Fatal("expected session token to be assigned")
	}
	if sess.Status != session.StatusPending {
		t.Fatalf("expected pending status, got %s", sess.Status)
	}

	fetched, err := store.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if fetched == nil || fetched.ID != sess.ID {
		t.Fatalf("unexpected fetched session: %#v", fetched)
	}
}

func TestGetByTokenUnknownReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sess, err := store.GetByToken(context.Background(), "no-such-token")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil for unknown token, got %#v", sess)
	}
}

func TestUpdateRoundTripsAssetFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypePhoto)

	sess.Status = session.StatusCaptured
	sess.CapturedAsset = testsupport.CaptureDataURL(t)
	sess.StyleID = "batik"
	sess.OutputFormat = "png"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusCaptured {
		t.Fatalf("expected captured status, got %s", fetched.Status)
	}
	if fetched.CapturedAsset != sess.CapturedAsset {
		t.Fatal("captured asset did not survive the round trip")
	}
	if fetched.StyleID != "batik" || fetched.OutputFormat != "png" {
		t.Fatalf("unexpected selection fields: %#v", fetched)
	}
}

func TestMarkReadyRequiresCapturedStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypePhoto)

	queued, err := store.MarkReady(ctx, sess.ID)
	if err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if queued {
		t.Fatal("pending session must not be queued")
	}

	sess.Status = session.StatusCaptured
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	queued, err = store.MarkReady(ctx, sess.ID)
	if err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if !queued {
		t.Fatal("captured session should be queued")
	}

	queued, err = store.MarkReady(ctx, sess.ID)
	if err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if queued {
		t.Fatal("already queued session must not be queued twice")
	}
}

func TestClaimGeneratingIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypePhoto)
	sess.Status = session.StatusCaptured
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := store.MarkReady(ctx, sess.ID); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}

	first, err := store.ClaimGenerating(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ClaimGenerating failed: %v", err)
	}
	if !first {
		t.Fatal("expected first claim to win")
	}

	second, err := store.ClaimGenerating(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ClaimGenerating failed: %v", err)
	}
	if second {
		t.Fatal("second claim must lose")
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusGenerating {
		t.Fatalf("expected generating status, got %s", fetched.Status)
	}
	if fetched.LastHeartbeat == nil {
		t.Fatal("expected claim to seed a heartbeat")
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewSession(t, store, session.TypePhoto)
	second := testsupport.NewSession(t, store, session.TypeAudio)

	for _, sess := range []*session.Session{first, second} {
		sess.Status = session.StatusReady
		if err := store.Update(ctx, sess); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	next, err := store.NextForStatuses(ctx, session.StatusReady)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest ready session, got %#v", next)
	}

	none, err := store.NextForStatuses(ctx, session.StatusGenerating)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no generating session, got %#v", none)
	}
}

func TestRetryByTokenMovesFailedBackToSelection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypePhoto)
	sess.Status = session.StatusFailed
	sess.CapturedAsset = testsupport.CaptureDataURL(t)
	sess.ErrorMessage = "generation endpoint unavailable"
	sess.FailureKind = "network"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retried, err := store.RetryByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("RetryByToken failed: %v", err)
	}
	if !retried {
		t.Fatal("expected failed session to be retried")
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusCaptured {
		t.Fatalf("expected captured status after retry, got %s", fetched.Status)
	}
	if fetched.ErrorMessage != "" || fetched.FailureKind != "" {
		t.Fatalf("expected error fields cleared, got %#v", fetched)
	}
	if fetched.CapturedAsset == "" {
		t.Fatal("retry must keep the captured asset")
	}

	retried, err = store.RetryByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("RetryByToken failed: %v", err)
	}
	if retried {
		t.Fatal("non-failed session must not be retried")
	}
}

func TestResetStuckGenerating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypeVideo)
	sess.Status = session.StatusGenerating
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ResetStuckGenerating(ctx)
	if err != nil {
		t.Fatalf("ResetStuckGenerating failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset session, got %d", count)
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusReady {
		t.Fatalf("expected ready status after reset, got %s", fetched.Status)
	}
}

func TestReclaimStaleGenerating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()

	stale := testsupport.NewSession(t, store, session.TypePhoto)
	stale.Status = session.StatusGenerating
	old := time.Now().UTC().Add(-10 * time.Minute)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewSession(t, store, session.TypePhoto)
	fresh.Status = session.StatusGenerating
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleGenerating(ctx, time.Now().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleGenerating failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed session, got %d", count)
	}

	fetched, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusFailed {
		t.Fatalf("expected failed status after reclaim, got %s", fetched.Status)
	}
	if fetched.ErrorMessage != session.InterruptedReason {
		t.Fatalf("unexpected error message: %q", fetched.ErrorMessage)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != session.StatusGenerating {
		t.Fatalf("fresh session should stay generating, got %s", untouched.Status)
	}
}

func TestUpdateHeartbeat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, session.TypePhoto)
	if err := store.UpdateHeartbeat(ctx, sess.ID); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.LastHeartbeat == nil {
		t.Fatal("expected heartbeat to be recorded")
	}
}

func TestDeleteAndClearMaintenance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	doomed := testsupport.NewSession(t, store, session.TypePhoto)
	completed := testsupport.NewSession(t, store, session.TypeAudio)
	completed.Status = session.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	failed := testsupport.NewSession(t, store, session.TypeVideo)
	failed.Status = session.StatusFailed
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	deleted, err := store.Delete(ctx, doomed.Token)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected session to be deleted")
	}

	cleared, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared completed session, got %d", cleared)
	}

	cleared, err = store.ClearFailed(ctx)
	if err != nil {
		t.Fatalf("ClearFailed failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared failed session, got %d", cleared)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty store, got %d sessions", len(remaining))
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewSession(t, store, session.TypePhoto)
	completed := testsupport.NewSession(t, store, session.TypePhoto)
	completed.Status = session.StatusCompleted
	if err := store.Update(ctx, completed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[session.StatusPending] != 1 || stats[session.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}
