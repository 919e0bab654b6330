package api

import (
	"testing"
	"time"

	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/workflow"
)

func TestFromSessionMapsCoreFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	sess := &session.Session{
		Token:           "abc123",
		MementoType:     session.TypePhoto,
		Status:          session.StatusGenerating,
		CapturedAsset:   "data:image/png;base64,AAAA",
		StyleID:         "watercolor",
		OutputFormat:    "png",
		ProgressStage:   "Generating",
		ProgressPercent: 42,
		ProgressMessage: "Styling photo",
		CreatedAt:       created,
		UpdatedAt:       created.Add(time.Minute),
	}

	dto := FromSession(sess)
	if dto.Token != "abc123" {
		t.Fatalf("expected token, got %q", dto.Token)
	}
	if dto.Status != string(session.StatusGenerating) {
		t.Fatalf("unexpected status %q", dto.Status)
	}
	if dto.Step != string(session.StepProcessing) {
		t.Fatalf("expected processing step, got %q", dto.Step)
	}
	if !dto.HasCapture {
		t.Fatal("expected HasCapture for session with captured asset")
	}
	if dto.HasResult {
		t.Fatal("did not expect HasResult before completion")
	}
	if dto.Progress.Percent != 42 || dto.Progress.Stage != "Generating" {
		t.Fatalf("unexpected progress %+v", dto.Progress)
	}
	if dto.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
}

func TestFromSessionOmitsResultPayload(t *testing.T) {
	sess := &session.Session{
		Token:          "tok",
		MementoType:    session.TypeAudio,
		Status:         session.StatusCompleted,
		GeneratedAsset: "data:audio/wav;base64,UklGRg==",
		GeneratedMIME:  "audio/wav",
	}
	dto := FromSession(sess)
	if !dto.HasResult {
		t.Fatal("expected HasResult for completed session")
	}
	if dto.ResultMime != "audio/wav" {
		t.Fatalf("unexpected result mime %q", dto.ResultMime)
	}
	if dto.Step != string(session.StepResult) {
		t.Fatalf("expected result step, got %q", dto.Step)
	}
}

func TestFromStatusSummaryOrdersStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:   true,
		LastError: "boom",
		SessionStats: map[session.Status]int{
			session.StatusFailed:    2,
			session.StatusCompleted: 5,
		},
		StageHealth: map[string]stage.Health{
			"voiceclone": {Name: "voiceclone", Ready: true},
			"montage":    {Name: "montage", Ready: false, Detail: "endpoint not configured"},
		},
	}

	wf := FromStatusSummary(summary)
	if !wf.Running || wf.LastError != "boom" {
		t.Fatalf("unexpected workflow status %+v", wf)
	}
	if wf.SessionStats["completed"] != 5 || wf.SessionStats["failed"] != 2 {
		t.Fatalf("unexpected stats %v", wf.SessionStats)
	}
	if len(wf.StageHealth) != 2 {
		t.Fatalf("expected two health entries, got %d", len(wf.StageHealth))
	}
	if wf.StageHealth[0].Name != "montage" || wf.StageHealth[1].Name != "voiceclone" {
		t.Fatalf("expected sorted health names, got %+v", wf.StageHealth)
	}
	if wf.StageHealth[0].Detail != "endpoint not configured" {
		t.Fatalf("unexpected detail %q", wf.StageHealth[0].Detail)
	}
}

func TestFromSessionsNilAndEmpty(t *testing.T) {
	if out := FromSessions(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
	out := FromSessions([]*session.Session{{Token: "a"}, {Token: "b"}})
	if len(out) != 2 || out[1].Token != "b" {
		t.Fatalf("unexpected conversion %v", out)
	}
}
