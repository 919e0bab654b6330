package montage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"membooth/internal/media"
	"membooth/internal/services"
)

const (
	stageName            = "montage"
	defaultSubmitTimeout = 30 * time.Second
	defaultPollInterval  = 3 * time.Second
	defaultJobTimeout    = 10 * time.Minute
	maxResponseBytes     = 256 << 20
)

// Job statuses reported by the rendering service.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Config captures the runtime settings required to talk to the montage
// rendering service.
type Config struct {
	Endpoint             string
	APIKey               string
	SubmitTimeoutSeconds int
	PollIntervalSeconds  int
	JobTimeoutSeconds    int
}

// Request describes one montage rendering job.
type Request struct {
	Images        []string
	MusicCategory string
}

// Result carries the rendered montage video.
type Result struct {
	Data []byte
	MIME string
}

// Progress reports job advancement during polling.
type Progress struct {
	Status  string
	Percent float64
	Message string
}

// Client wraps the asynchronous montage rendering HTTP API. Jobs are
// submitted, then polled until they finish or the job timeout elapses.
type Client struct {
	cfg        Config
	httpClient *http.Client

	pollInterval time.Duration
	jobTimeout   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides how often job status is polled (useful for tests).
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient constructs a montage client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	submitTimeout := defaultSubmitTimeout
	if cfg.SubmitTimeoutSeconds > 0 {
		submitTimeout = time.Duration(cfg.SubmitTimeoutSeconds) * time.Second
	}
	pollInterval := defaultPollInterval
	if cfg.PollIntervalSeconds > 0 {
		pollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	}
	jobTimeout := defaultJobTimeout
	if cfg.JobTimeoutSeconds > 0 {
		jobTimeout = time.Duration(cfg.JobTimeoutSeconds) * time.Second
	}

	client := &Client{
		cfg: Config{
			Endpoint:             strings.TrimSpace(cfg.Endpoint),
			APIKey:               strings.TrimSpace(cfg.APIKey),
			SubmitTimeoutSeconds: cfg.SubmitTimeoutSeconds,
			PollIntervalSeconds:  cfg.PollIntervalSeconds,
			JobTimeoutSeconds:    cfg.JobTimeoutSeconds,
		},
		httpClient:   &http.Client{Timeout: submitTimeout},
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultSubmitTimeout}
	}
	return client
}

// Configured reports whether the client has an endpoint to call.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Endpoint != ""
}

type submitRequest struct {
	Images        []string `json:"images"`
	MusicCategory string   `json:"music_category,omitempty"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type statusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	VideoURL string  `json:"video_url"`
	Video    string  `json:"video"`
	Error    string  `json:"error"`
}

// Render submits a montage job and polls it to completion. The onProgress
// callback, when provided, is invoked after every poll.
func (c *Client) Render(ctx context.Context, req Request, onProgress func(Progress)) (Result, error) {
	var empty Result
	if !c.Configured() {
		return empty, services.Wrap(services.ErrConfiguration, stageName, "render", "montage endpoint not configured", nil)
	}
	if len(req.Images) == 0 {
		return empty, services.Wrap(services.ErrValidation, stageName, "render", "at least one frame required", nil)
	}

	jobID, err := c.submit(ctx, req)
	if err != nil {
		return empty, err
	}

	deadline := time.Now().Add(c.jobTimeout)
	for {
		status, err := c.jobStatus(ctx, jobID)
		if err != nil {
			return empty, err
		}
		if onProgress != nil {
			onProgress(Progress{
				Status:  status.Status,
				Percent: status.Progress,
				Message: status.Message,
			})
		}

		switch status.Status {
		case JobCompleted:
			return c.fetchResult(ctx, status)
		case JobFailed:
			message := strings.TrimSpace(status.Error)
			if message == "" {
				message = "rendering failed"
			}
			return empty, services.Wrap(services.ErrRejected, stageName, "render", message, nil)
		case JobQueued, JobProcessing, "":
		default:
			return empty, services.Wrap(services.ErrRejected, stageName, "render",
				fmt.Sprintf("unknown job status %q", status.Status), nil)
		}

		if time.Now().After(deadline) {
			return empty, services.Wrap(services.ErrTimeout, stageName, "render",
				fmt.Sprintf("job %s still running after %s", jobID, c.jobTimeout), nil)
		}
		if err := c.sleep(ctx); err != nil {
			return empty, err
		}
	}
}

func (c *Client) submit(ctx context.Context, req Request) (string, error) {
	encoded, err := json.Marshal(submitRequest{
		Images:        req.Images,
		MusicCategory: strings.TrimSpace(req.MusicCategory),
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "submit", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrNetwork, stageName, "submit", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.WrapTransportError(stageName, "submit", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", services.WrapTransportError(stageName, "submit", c.httpClient.Timeout, err)
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", &services.StatusError{
			Stage:      stageName,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", services.Wrap(services.ErrRejected, stageName, "submit", "decode response", err)
	}
	if strings.TrimSpace(submitted.JobID) == "" {
		return "", services.Wrap(services.ErrRejected, stageName, "submit", "endpoint returned no job id", nil)
	}
	return submitted.JobID, nil
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (statusResponse, error) {
	var status statusResponse
	statusURL := strings.TrimRight(c.cfg.Endpoint, "/") + "/" + jobID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return status, services.Wrap(services.ErrNetwork, stageName, "status", "build request", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return status, services.WrapTransportError(stageName, "status", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return status, services.WrapTransportError(stageName, "status", c.httpClient.Timeout, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return status, &services.StatusError{
			Stage:      stageName,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, &status); err != nil {
		return status, services.Wrap(services.ErrRejected, stageName, "status", "decode response", err)
	}
	return status, nil
}

// fetchResult turns a completed job into the rendered video. Completion
// normally carries a hosted media URL which must be downloaded; an inline
// data URL in the video field is accepted as a fallback.
func (c *Client) fetchResult(ctx context.Context, status statusResponse) (Result, error) {
	if raw := strings.TrimSpace(status.VideoURL); raw != "" {
		return c.download(ctx, raw)
	}
	return decodeVideo(status)
}

func (c *Client) download(ctx context.Context, raw string) (Result, error) {
	var empty Result
	target, err := c.resolveMediaURL(raw)
	if err != nil {
		return empty, services.Wrap(services.ErrRejected, stageName, "download", "resolve video url", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, stageName, "download", "build request", err)
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, services.WrapTransportError(stageName, "download", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, &services.StatusError{
			Stage:      stageName,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return empty, services.WrapTransportError(stageName, "download", c.httpClient.Timeout, err)
	}
	if len(data) == 0 {
		return empty, services.Wrap(services.ErrRejected, stageName, "download", "empty video artifact", nil)
	}

	mimeType := contentTypeMIME(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = media.SniffMIME(data)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "video/mp4"
	}
	return Result{Data: data, MIME: mimeType}, nil
}

// resolveMediaURL makes relative artifact paths absolute against the
// configured endpoint. Hosted URLs pass through unchanged.
func (c *Client) resolveMediaURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func contentTypeMIME(header string) string {
	header = strings.TrimSpace(header)
	if idx := strings.IndexByte(header, ';'); idx >= 0 {
		header = strings.TrimSpace(header[:idx])
	}
	return strings.ToLower(header)
}

func decodeVideo(status statusResponse) (Result, error) {
	var empty Result
	if strings.TrimSpace(status.Video) == "" {
		return empty, services.Wrap(services.ErrRejected, stageName, "render", "completed job carried no video", nil)
	}
	mimeType, data, err := media.DecodeDataURL(status.Video)
	if err != nil {
		return empty, services.Wrap(services.ErrRejected, stageName, "render", "decode video payload", err)
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return Result{Data: data, MIME: mimeType}, nil
}

func (c *Client) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, stageName, "render", "polling interrupted", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// HealthCheck verifies the client configuration without calling the endpoint.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return errors.New("montage endpoint not configured")
	}
	return nil
}
