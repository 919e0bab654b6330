package stylegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"membooth/internal/media"
	"membooth/internal/services"
)

const (
	stageName          = "stylegen"
	defaultHTTPTimeout = 120 * time.Second
	maxResponseBytes   = 64 << 20
)

// Config captures the runtime settings required to talk to the style
// generation endpoint.
type Config struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
}

// Request describes one stylization call.
type Request struct {
	Image        []byte
	ImageMIME    string
	Prompt       string
	Fidelity     float64
	OutputFormat string
	AspectRatio  string
}

// Result carries the generated image.
type Result struct {
	Data []byte
	MIME string
}

// Client wraps the image stylization HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a stylization client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Endpoint:       strings.TrimSpace(cfg.Endpoint),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Configured reports whether the client has an endpoint to call.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.Endpoint != ""
}

// Generate stylizes a captured photo. Moderation refusals and rate limiting
// come back as rejection errors carrying the endpoint's own message.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	var empty Result
	if !c.Configured() {
		return empty, services.Wrap(services.ErrConfiguration, stageName, "generate", "stylegen endpoint not configured", nil)
	}
	if len(req.Image) == 0 {
		return empty, services.Wrap(services.ErrValidation, stageName, "generate", "image required", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, services.Wrap(services.ErrValidation, stageName, "generate", "prompt required", nil)
	}

	body, contentType, err := encodeForm(req)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, stageName, "generate", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, stageName, "generate", "build request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, services.WrapTransportError(stageName, "generate", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return empty, services.WrapTransportError(stageName, "generate", c.httpClient.Timeout, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &services.StatusError{
			Stage:      stageName,
			StatusCode: resp.StatusCode,
			Body:       string(payload),
			RetryAfter: retryAfter(resp.Header),
		}
	}

	if len(payload) == 0 {
		return empty, services.Wrap(services.ErrRejected, stageName, "generate", "endpoint returned an empty image", nil)
	}

	mimeType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = media.SniffMIME(payload)
	}
	if !media.IsImageMIME(mimeType) {
		return empty, services.Wrap(services.ErrRejected, stageName, "generate",
			fmt.Sprintf("endpoint returned %s instead of an image", mimeType), nil)
	}

	return Result{Data: payload, MIME: mimeType}, nil
}

// HealthCheck verifies the client configuration without calling the endpoint.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return errors.New("stylegen endpoint not configured")
	}
	return nil
}

func encodeForm(req Request) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	imageMIME := strings.TrimSpace(req.ImageMIME)
	if imageMIME == "" {
		imageMIME = media.SniffMIME(req.Image)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="capture%s"`, media.ExtensionForMIME(imageMIME)))
	header.Set("Content-Type", imageMIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	fields := map[string]string{
		"prompt":        strings.TrimSpace(req.Prompt),
		"fidelity":      strconv.FormatFloat(req.Fidelity, 'f', -1, 64),
		"output_format": strings.TrimSpace(req.OutputFormat),
		"aspect_ratio":  strings.TrimSpace(req.AspectRatio),
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func retryAfter(header http.Header) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}
