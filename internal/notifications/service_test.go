package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"membooth/internal/config"
	"membooth/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyMementoReady(context.Background(), "photo", "token-1"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "generation started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyGenerationStarted(context.Background(), "photo", "abcdef1234567890")
			},
			expectTitle:   "Membooth - Generating",
			expectMessage: "Started photo memento for session abcdef12",
			expectTags:    "membooth,generation,started",
		},
		{
			name: "memento ready",
			notify: func(svc notifications.Service) error {
				return svc.NotifyMementoReady(context.Background(), "video", "abcdef1234567890")
			},
			expectTitle:    "Membooth - Memento Ready",
			expectMessage:  "Finished video memento for session abcdef12",
			expectTags:     "membooth,generation,completed",
			expectPriority: "high",
		},
		{
			name: "capture issue",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCaptureIssue(context.Background(), "abcdef1234567890", "camera permission denied")
			},
			expectTitle:   "Membooth - Capture Issue",
			expectMessage: "Capture problem in session abcdef12: camera permission denied\nBooth hardware may need attention",
			expectTags:    "membooth,capture,alert",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("endpoint unreachable"), "style generation")
			},
			expectTitle:    "Membooth - Error",
			expectMessage:  "Error with style generation: endpoint unreachable",
			expectTags:     "membooth,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsConfigGates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for suppressed notification: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completion = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyGenerationStarted(ctx, "photo", "token"); err != nil {
		t.Fatalf("expected suppressed notification to return nil, got %v", err)
	}
	if err := svc.NotifyMementoReady(ctx, "photo", "token"); err != nil {
		t.Fatalf("expected suppressed notification to return nil, got %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "generation"); err != nil {
		t.Fatalf("expected suppressed notification to return nil, got %v", err)
	}
}
