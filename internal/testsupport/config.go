package testsupport

import (
	"path/filepath"
	"testing"

	"membooth/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HTTPBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStyleGen points the style generation client at a test endpoint.
func WithStyleGen(endpoint, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.StyleGen.Endpoint = endpoint
		b.cfg.StyleGen.APIKey = apiKey
	}
}

// WithVoiceClone points the voice cloning client at a test endpoint.
func WithVoiceClone(endpoint, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.VoiceClone.Endpoint = endpoint
		b.cfg.VoiceClone.APIKey = apiKey
	}
}

// WithMontage points the montage client at a test endpoint.
func WithMontage(endpoint, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Montage.Endpoint = endpoint
		b.cfg.Montage.APIKey = apiKey
	}
}

// WithAPIToken sets the HTTP API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
