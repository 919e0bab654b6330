package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"membooth/internal/config"
)

const userAgent = "Membooth-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyGenerationStarted(ctx context.Context, mementoType, token string) error
	NotifyMementoReady(ctx context.Context, mementoType, token string) error
	NotifyCaptureIssue(ctx context.Context, token, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:   topic,
		client:     client,
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyGenerationStarted(ctx context.Context, mementoType, token string) error {
	if !n.completion {
		return nil
	}
	mementoType = strings.TrimSpace(mementoType)
	data := payload{
		title:   "Membooth - Generating",
		message: fmt.Sprintf("Started %s memento for session %s", mementoType, shortToken(token)),
		tags:    []string{"membooth", "generation", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyMementoReady(ctx context.Context, mementoType, token string) error {
	if !n.completion {
		return nil
	}
	mementoType = strings.TrimSpace(mementoType)
	data := payload{
		title:    "Membooth - Memento Ready",
		message:  fmt.Sprintf("Finished %s memento for session %s", mementoType, shortToken(token)),
		tags:     []string{"membooth", "generation", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCaptureIssue(ctx context.Context, token, reason string) error {
	if !n.errors {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:   "Membooth - Capture Issue",
		message: fmt.Sprintf("Capture problem in session %s: %s\nBooth hardware may need attention", shortToken(token), reason),
		tags:    []string{"membooth", "capture", "alert"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Membooth - Error",
		message:  builder.String(),
		tags:     []string{"membooth", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Membooth - Test",
		message:  "Notification system test",
		tags:     []string{"membooth", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func shortToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGenerationStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyMementoReady(context.Context, string, string) error      { return nil }
func (noopService) NotifyCaptureIssue(context.Context, string, string) error      { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
