package voiceclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"membooth/internal/media"
	"membooth/internal/services"
)

const (
	stageName          = "voiceclone"
	defaultHTTPTimeout = 120 * time.Second
	maxResponseBytes   = 64 << 20
)

// VoiceClone speaks supplied text in the visitor's own cloned voice.
const VoiceClone = "clone"

// Stock voices available without a recorded sample.
const (
	VoiceMale   = "male"
	VoiceFemale = "female"
)

// KnownVoice reports whether the voice type is one the endpoint accepts.
func KnownVoice(voice string) bool {
	switch strings.ToLower(strings.TrimSpace(voice)) {
	case VoiceMale, VoiceFemale, VoiceClone:
		return true
	}
	return false
}

// Config captures the runtime settings required to talk to the voice
// cloning endpoint.
type Config struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
}

// Request describes one speech synthesis call. Audio is required only for
// the clone voice type.
type Request struct {
	Text      string
	VoiceType string
	Audio     []byte
	AudioMIME string
}

// Result carries the synthesized audio.
type Result struct {
	Data []byte
	MIME string
}

// Client wraps the voice cloning HTTP API.
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

// NewClient constructs a voice cloning client using the supplied configuration.
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

// Synthesize speaks the supplied text, cloning the visitor's voice when a
// sample is provided.
func (c *Client) Synthesize(ctx context.Context, req Request) (Result, error) {
	var empty Result
	if !c.Configured() {
		return empty, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "voiceclone endpoint not configured", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return empty, services.Wrap(services.ErrValidation, stageName, "synthesize", "text required", nil)
	}
	voice := strings.ToLower(strings.TrimSpace(req.VoiceType))
	if !KnownVoice(voice) {
		return empty, services.Wrap(services.ErrValidation, stageName, "synthesize",
			fmt.Sprintf("unknown voice type %q", req.VoiceType), nil)
	}
	if voice == VoiceClone && len(req.Audio) == 0 {
		return empty, services.Wrap(services.ErrValidation, stageName, "synthesize", "voice sample required for cloning", nil)
	}

	body, contentType, err := encodeForm(req, voice)
	if err != nil {
		return empty, services.Wrap(services.ErrValidation, stageName, "synthesize", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return empty, services.Wrap(services.ErrNetwork, stageName, "synthesize", "build request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, services.WrapTransportError(stageName, "synthesize", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return empty, services.WrapTransportError(stageName, "synthesize", c.httpClient.Timeout, err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &services.StatusError{
			Stage:      stageName,
			StatusCode: resp.StatusCode,
			Body:       string(payload),
		}
	}

	if len(payload) == 0 {
		return empty, services.Wrap(services.ErrRejected, stageName, "synthesize", "endpoint returned empty audio", nil)
	}

	mimeType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/wav"
	}
	if !media.IsAudioMIME(mimeType) {
		return empty, services.Wrap(services.ErrRejected, stageName, "synthesize",
			fmt.Sprintf("endpoint returned %s instead of audio", mimeType), nil)
	}

	return Result{Data: payload, MIME: mimeType}, nil
}

// HealthCheck verifies the client configuration without calling the endpoint.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.Configured() {
		return errors.New("voiceclone endpoint not configured")
	}
	return nil
}

func encodeForm(req Request, voice string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("text", strings.TrimSpace(req.Text)); err != nil {
		return nil, "", fmt.Errorf("write text field: %w", err)
	}
	if err := writer.WriteField("voice_type", voice); err != nil {
		return nil, "", fmt.Errorf("write voice_type field: %w", err)
	}

	if len(req.Audio) > 0 {
		audioMIME := strings.TrimSpace(req.AudioMIME)
		if audioMIME == "" {
			audioMIME = "audio/wav"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio_file"; filename="sample%s"`, media.ExtensionForMIME(audioMIME)))
		header.Set("Content-Type", audioMIME)
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create audio part: %w", err)
		}
		if _, err := part.Write(req.Audio); err != nil {
			return nil, "", fmt.Errorf("write audio part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
