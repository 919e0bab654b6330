package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"membooth/internal/api"
	"membooth/internal/config"
	"membooth/internal/logging"
	"membooth/internal/media"
	"membooth/internal/session"
	"membooth/internal/stage"
	"membooth/internal/testsupport"
	"membooth/internal/workflow"
)

type idleStage struct{}

func (idleStage) Prepare(context.Context, *session.Session) error { return nil }
func (idleStage) Execute(context.Context, *session.Session) error { return nil }
func (idleStage) HealthCheck(context.Context) stage.Health        { return stage.Healthy("idle") }

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger, idleStage{})
	d, err := New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.httpServer.server.Handler)
	t.Cleanup(server.Close)
	return server, d, cfg
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) api.Session {
	t.Helper()
	defer resp.Body.Close()
	var payload api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	return payload.Session
}

func TestPhotoSessionCaptureToGenerate(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/sessions", map[string]string{"mementoType": "photo"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", resp.StatusCode)
	}
	created := decodeSession(t, resp)
	if created.Step != string(session.StepCapture) {
		t.Fatalf("new session should start at capture, got %q", created.Step)
	}

	base := server.URL + "/api/sessions/" + created.Token
	resp = postJSON(t, base+"/capture", map[string]string{"asset": testsupport.CaptureDataURL(t)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capture: expected 200, got %d", resp.StatusCode)
	}
	captured := decodeSession(t, resp)
	if captured.Step != string(session.StepSelection) {
		t.Fatalf("captured session should be at selection, got %q", captured.Step)
	}
	if !captured.HasCapture {
		t.Fatal("expected capture to be recorded")
	}

	resp = postJSON(t, base+"/selection", map[string]string{"styleId": "Vintage", "outputFormat": "PNG"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("selection: expected 200, got %d", resp.StatusCode)
	}
	selected := decodeSession(t, resp)
	if selected.StyleID != "vintage" || selected.OutputFormat != "png" {
		t.Fatalf("selection not normalized: %+v", selected)
	}

	resp = postJSON(t, base+"/generate", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate: expected 202, got %d", resp.StatusCode)
	}
	queued := decodeSession(t, resp)
	if queued.Status != string(session.StatusReady) {
		t.Fatalf("expected ready status after generate, got %q", queued.Status)
	}
	if queued.Step != string(session.StepProcessing) {
		t.Fatalf("expected processing step, got %q", queued.Step)
	}
}

func TestGenerateWithoutCaptureRedirects(t *testing.T) {
	server, _, _ := newTestServer(t)

	created := decodeSession(t, postJSON(t, server.URL+"/api/sessions", map[string]string{"mementoType": "photo"}))
	resp := postJSON(t, server.URL+"/api/sessions/"+created.Token+"/generate", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	var rejection generateRejection
	if err := json.NewDecoder(resp.Body).Decode(&rejection); err != nil {
		t.Fatalf("decode rejection: %v", err)
	}
	if rejection.RedirectStep != string(session.StepCapture) {
		t.Fatalf("expected capture redirect, got %q", rejection.RedirectStep)
	}
}

func TestCaptureRejectsNonImagePayload(t *testing.T) {
	server, _, _ := newTestServer(t)

	created := decodeSession(t, postJSON(t, server.URL+"/api/sessions", map[string]string{"mementoType": "photo"}))
	asset := media.EncodeDataURL("text/plain", []byte("not an image"))
	resp := postJSON(t, server.URL+"/api/sessions/"+created.Token+"/capture", map[string]string{"asset": asset})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-image capture, got %d", resp.StatusCode)
	}
}

func TestCaptureEnforcesUploadLimit(t *testing.T) {
	server, _, cfg := newTestServer(t)
	cfg.Booth.MaxUploadBytes = 64

	created := decodeSession(t, postJSON(t, server.URL+"/api/sessions", map[string]string{"mementoType": "photo"}))
	resp := postJSON(t, server.URL+"/api/sessions/"+created.Token+"/capture",
		map[string]string{"asset": testsupport.PNGDataURL(t, 200, 200, color.White)})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized capture, got %d", resp.StatusCode)
	}
}

func TestVideoCaptureStoresMontageFrames(t *testing.T) {
	server, d, _ := newTestServer(t)

	created := decodeSession(t, postJSON(t, server.URL+"/api/sessions", map[string]string{"mementoType": "video"}))
	frames := []string{
		testsupport.CaptureDataURL(t),
		testsupport.CaptureDataURL(t),
		testsupport.CaptureDataURL(t),
	}
	resp := postJSON(t, server.URL+"/api/sessions/"+created.Token+"/capture",
		map[string]any{"frames": frames, "videoMode": "clip"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("video capture: expected 200, got %d", resp.StatusCode)
	}
	dto := decodeSession(t, resp)
	if dto.VideoMode != string(session.VideoModeClip) {
		t.Fatalf("expected clip mode, got %q", dto.VideoMode)
	}

	stored, err := d.store.GetByToken(context.Background(), created.Token)
	if err != nil || stored == nil {
		t.Fatalf("GetByToken: %v", err)
	}
	decoded, err := stored.DecodeMontageImages()
	if err != nil {
		t.Fatalf("DecodeMontageImages: %v", err)
	}
	if len(decoded) != len(frames) {
		t.Fatalf("expected %d stored frames, got %d", len(frames), len(decoded))
	}
}

func TestDownloadStreamsCompletedResult(t *testing.T) {
	server, d, _ := newTestServer(t)
	ctx := context.Background()

	sess := testsupport.NewSession(t, d.store, session.TypePhoto)
	payload := testsupport.PNGBytes(t, 32, 32, color.Black)
	sess.Status = session.StatusCompleted
	sess.SetCompleted(media.EncodeDataURL("image/png", payload), "image/png")
	if err := d.store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/sessions/" + sess.Token + "/download")
	if err != nil {
		t.Fatalf("GET download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
	if disp := resp.Header.Get("Content-Disposition"); !strings.Contains(disp, sess.Token) {
		t.Fatalf("expected token in filename, got %q", disp)
	}
}

func TestResultReportsShareFallback(t *testing.T) {
	server, d, _ := newTestServer(t)
	ctx := context.Background()

	sess := testsupport.NewSession(t, d.store, session.TypeAudio)
	sess.SetCompleted(media.EncodeDataURL("audio/wav", []byte("RIFFdata")), "audio/wav")
	if err := d.store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/sessions/" + sess.Token + "/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer resp.Body.Close()
	var result resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Share.Available {
		t.Fatal("expected sharing to be unavailable without a share base url")
	}
	if result.Share.Unavailable == "" {
		t.Fatal("expected a visitor-facing unavailable reason")
	}
	if result.Mime != "audio/wav" || result.Asset == "" {
		t.Fatalf("unexpected result payload %+v", result)
	}
}

func TestResultIncludesShareURLWhenConfigured(t *testing.T) {
	server, d, cfg := newTestServer(t)
	cfg.Booth.ShareBaseURL = "https://mementos.example.com/m/"
	ctx := context.Background()

	sess := testsupport.NewSession(t, d.store, session.TypePhoto)
	sess.SetCompleted(testsupport.CaptureDataURL(t), "image/png")
	if err := d.store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/sessions/" + sess.Token + "/result")
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer resp.Body.Close()
	var result resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := "https://mementos.example.com/m/" + sess.Token
	if !result.Share.Available || result.Share.URL != want {
		t.Fatalf("unexpected share descriptor %+v", result.Share)
	}
}

func TestStatusPublishesCaptureLimits(t *testing.T) {
	server, _, cfg := newTestServer(t)
	cfg.Booth.MaxClipSeconds = 15
	cfg.Booth.MaxMontageImages = 8
	cfg.Booth.MaxUploadBytes = 1 << 20

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Limits.MaxClipSeconds != 15 {
		t.Fatalf("maxClipSeconds = %d, want 15", status.Limits.MaxClipSeconds)
	}
	if status.Limits.MaxMontageImages != 8 {
		t.Fatalf("maxMontageImages = %d, want 8", status.Limits.MaxMontageImages)
	}
	if status.Limits.MaxUploadBytes != 1<<20 {
		t.Fatalf("maxUploadBytes = %d, want %d", status.Limits.MaxUploadBytes, 1<<20)
	}
}

func TestAuthMiddlewareRequiresBearerToken(t *testing.T) {
	server, _, _ := newTestServer(t, testsupport.WithAPIToken("sekrit"))

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/status", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET status with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestRetryMovesFailedSessionBackToSelection(t *testing.T) {
	server, d, _ := newTestServer(t)
	ctx := context.Background()

	sess := testsupport.NewSession(t, d.store, session.TypePhoto)
	sess.Status = session.StatusCaptured
	sess.CapturedAsset = testsupport.CaptureDataURL(t)
	sess.SetFailed("timeout", "no response within 120s")
	if err := d.store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resp := postJSON(t, server.URL+"/api/sessions/"+sess.Token+"/retry", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", resp.StatusCode)
	}
	dto := decodeSession(t, resp)
	if dto.Status != string(session.StatusCaptured) {
		t.Fatalf("expected captured after retry, got %q", dto.Status)
	}
	if !dto.HasCapture {
		t.Fatal("retry must keep the captured asset")
	}
}

func TestProgressWebsocketStreamsTerminalSnapshot(t *testing.T) {
	server, d, _ := newTestServer(t)
	ctx := context.Background()

	sess := testsupport.NewSession(t, d.store, session.TypePhoto)
	sess.SetCompleted(testsupport.CaptureDataURL(t), "image/png")
	if err := d.store.Update(ctx, sess); err != nil {
		t.Fatalf("Update: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") +
		fmt.Sprintf("/api/sessions/%s/progress", sess.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	var payload api.SessionResponse
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("read progress frame: %v", err)
	}
	if payload.Session.Status != string(session.StatusCompleted) {
		t.Fatalf("expected completed snapshot, got %q", payload.Session.Status)
	}
	if payload.Session.Step != string(session.StepResult) {
		t.Fatalf("expected result step, got %q", payload.Session.Step)
	}
}
